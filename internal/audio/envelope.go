package audio

// applyFadeIn multiplies the first fadeFrames of the clip by a linear 0→1
// gain ramp, in place.
func applyFadeIn(clip *Clip, fadeFrames int) {
	frames := clip.Frames()
	if fadeFrames > frames {
		fadeFrames = frames
	}

	if fadeFrames <= 0 {
		return
	}

	for frame := range fadeFrames {
		gain := float64(frame) / float64(fadeFrames)

		for channel := range numChannels {
			index := frame*numChannels + channel
			clip.samples[index] = clampSample(float64(clip.samples[index]) * gain)
		}
	}
}

// applyFadeOut multiplies the last fadeFrames of the clip by a linear 1→0
// gain ramp, in place.
func applyFadeOut(clip *Clip, fadeFrames int) {
	frames := clip.Frames()
	if fadeFrames > frames {
		fadeFrames = frames
	}

	if fadeFrames <= 0 {
		return
	}

	offset := frames - fadeFrames

	for frame := range fadeFrames {
		gain := 1 - float64(frame+1)/float64(fadeFrames)

		for channel := range numChannels {
			index := (offset+frame)*numChannels + channel
			clip.samples[index] = clampSample(float64(clip.samples[index]) * gain)
		}
	}
}
