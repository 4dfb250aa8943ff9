package filter

func init() {
	register(Preset{
		Name:        "nightcore",
		Label:       "Nightcore",
		Description: "Faster with a higher pitch",
		Params:      Params{Timescale: &Timescale{Speed: 1.2, Pitch: 1.2, Rate: 1.0}},
	})
	register(Preset{
		Name:        "vaporwave",
		Label:       "Vaporwave",
		Description: "Slower with a lower pitch",
		Params:      Params{Timescale: &Timescale{Speed: 0.85, Pitch: 0.8, Rate: 1.0}},
	})
	register(Preset{
		Name:        "bassboost",
		Label:       "Bass Boost",
		Description: "Boosts the low end",
		Params: Params{Equalizer: []Band{
			{Band: 0, Gain: 0.3},
			{Band: 1, Gain: 0.25},
			{Band: 2, Gain: 0.2},
			{Band: 3, Gain: 0.1},
			{Band: 4, Gain: 0.05},
		}},
	})
	register(Preset{
		Name:        "8d",
		Label:       "8D Audio",
		Description: "Pans the sound around your head",
		Params:      Params{Rotation: &Rotation{RotationHz: 0.2}},
	})
	register(Preset{
		Name:        "karaoke",
		Label:       "Karaoke",
		Description: "Suppresses vocals",
		Params:      Params{Karaoke: &Karaoke{Level: 1.0, MonoLevel: 1.0, FilterBand: 220.0, FilterWidth: 100.0}},
	})
	register(Preset{
		Name:        "tremolo",
		Label:       "Tremolo",
		Description: "Wavering volume",
		Params:      Params{Tremolo: &Tremolo{Frequency: 4.0, Depth: 0.75}},
	})
	register(Preset{
		Name:        "vibrato",
		Label:       "Vibrato",
		Description: "Wavering pitch",
		Params:      Params{Vibrato: &Vibrato{Frequency: 4.0, Depth: 0.75}},
	})
	register(Preset{
		Name:        "lowpass",
		Label:       "Low Pass",
		Description: "Muffles high frequencies",
		Params:      Params{LowPass: &LowPass{Smoothing: 20.0}},
	})
	register(Preset{
		Name:        "slowmode",
		Label:       "Slowed",
		Description: "Slowed down playback",
		Params:      Params{Timescale: &Timescale{Speed: 0.7, Pitch: 1.0, Rate: 0.8}},
	})
	register(Preset{
		Name:        "distortion",
		Label:       "Distortion",
		Description: "Gritty waveshaping",
		Params: Params{Distortion: &Distortion{
			SinOffset: 0, SinScale: 1,
			CosOffset: 0, CosScale: 1,
			TanOffset: 0, TanScale: 1,
			Offset: 0, Scale: 1,
		}},
	})
}
