package servo

// ComputeDutyCycle linearly remaps angle from [startAngle, endAngle] onto
// [startDutyCycle, endDutyCycle].
func ComputeDutyCycle(startDutyCycle, endDutyCycle, startAngle, endAngle, angle float64) float64 {
	return startDutyCycle + (endDutyCycle-startDutyCycle)*(angle-startAngle)/(endAngle-startAngle)
}
