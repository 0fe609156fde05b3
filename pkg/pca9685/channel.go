package pca9685

// Channel is one PWM output of a shared Driver. Each write holds the
// driver's lock for exactly one register transaction, so writes from
// different channels never tear but are not ordered relative to each other.
type Channel struct {
	driver  *Driver
	channel uint8
}

func (c *Channel) Write(on, off uint16) error {
	return c.driver.WriteChannel(c.channel, on, off)
}

func (c *Channel) WriteDutyCycle(dutyCycle float64) error {
	return c.driver.WriteChannelDutyCycle(c.channel, dutyCycle)
}
