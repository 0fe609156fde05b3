package pca9685

import "time"

const (
	DefaultAddr     = 0x40
	GeneralCallAddr = 0x00

	// Sent to the general-call address, resets every PCA9685 on the bus.
	SoftwareResetByte = 0x06

	RegMode1 = 0x00
	RegMode2 = 0x01

	// Each PWM output has two 16-bit (low byte first) registers.
	// First register is the on time, second is the off time.
	RegLEDBase   = 0x06
	LEDBlockSize = 4

	RegPreScale = 0xfe // Pre-scaler for PWM frequency.
	RegTestMode = 0xff

	Mode1Restart = 1 << 7
	Mode1Sleep   = 1 << 4
	Mode1AllCall = 1 << 0

	NumChannels = 16

	// 12-bit counter: 4096 slots per PWM period.
	PWMResolution = 4096
	PWMMax        = PWMResolution - 1

	DefaultOscClock   = 25_000_000
	DefaultUpdateRate = 50
)

const (
	ResetSettleTime      = 1 * time.Millisecond
	OscillatorSettleTime = 500 * time.Microsecond
)

// LEDAddr returns the LEDn_ON_L register address of the given channel.
func LEDAddr(channel uint8) byte {
	return byte(RegLEDBase + int(channel)*LEDBlockSize)
}
