package main

import (
	"flag"
	"fmt"
	"os"

	dsptime "github.com/cwbudde/algo-dsp/stats/time"
	"github.com/cwbudde/wav"
	goaudio "github.com/go-audio/audio"
	"github.com/jinjor/desktop-synth/src/audio"
	"github.com/sirupsen/logrus"
)

func main() {
	note := flag.Int("note", 0, "note index 0-11 (0 = 220Hz)")
	osc1 := flag.Bool("osc1", true, "enable oscillator 1")
	osc2 := flag.Bool("osc2", false, "enable oscillator 2")
	wave1 := flag.String("wave1", "sine", "oscillator 1 waveform (sine, saw, square)")
	wave2 := flag.String("wave2", "saw", "oscillator 2 waveform (sine, saw, square)")
	offset := flag.Float64("offset", 0, "oscillator 1 frequency offset in Hz (-5..5)")
	attack := flag.Float64("attack", 0.01, "attack time in seconds")
	release := flag.Float64("release", 0.5, "release time in seconds")
	cutoff := flag.Float64("cutoff", 20000, "filter cutoff in Hz")
	resonance := flag.Float64("resonance", 0, "filter resonance (0..0.99)")
	delayTime := flag.Float64("delay", 0.3, "delay time in seconds")
	delayMix := flag.Float64("mix", 0.5, "delay dry/wet mix")
	hold := flag.Float64("hold", 1.0, "seconds the gate is held")
	duration := flag.Float64("duration", 2.0, "total length in seconds")
	sampleRate := flag.Int("sample-rate", audio.DefaultSampleRate, "render sample rate in Hz")
	frames := flag.Int("frames", audio.DefaultFramesPerBlock, "frames per block")
	output := flag.String("output", "output.wav", "output WAV file path")
	flag.Parse()
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	w1, err := audio.ParseWaveform(*wave1)
	if err != nil {
		logrus.Fatalf("error: %v", err)
	}
	w2, err := audio.ParseWaveform(*wave2)
	if err != nil {
		logrus.Fatalf("error: %v", err)
	}

	params := audio.NewParams()
	params.SetOsc1Enabled(*osc1)
	params.SetOsc2Enabled(*osc2)
	params.SetOsc1Waveform(w1)
	params.SetOsc2Waveform(w2)
	params.SetOsc1FreqOffset(*offset)
	params.SetAttack(*attack)
	params.SetRelease(*release)
	params.SetFilterCutoff(*cutoff)
	params.SetFilterResonance(*resonance)
	params.SetDelayTime(*delayTime)
	params.SetDelayMix(*delayMix)
	params.SetCurrentNote(*note)

	engine, err := audio.NewEngine(params, audio.Config{SampleRate: *sampleRate, FramesPerBlock: *frames})
	if err != nil {
		logrus.Fatalf("error: %v", err)
	}

	samples := render(engine, params, *hold, *duration)
	if err := writeWav(*output, samples, *sampleRate); err != nil {
		logrus.Fatalf("error: %v", err)
	}

	left := make([]float64, len(samples)/2)
	for i := range left {
		left[i] = float64(samples[2*i])
	}
	stats := dsptime.Calculate(left)
	logrus.WithFields(logrus.Fields{
		"output":  *output,
		"frames":  len(left),
		"peak_dB": fmt.Sprintf("%.2f", stats.Peak_dB),
		"rms_dB":  fmt.Sprintf("%.2f", stats.RMS_dB),
	}).Info("rendered")
}

// render drives the engine block by block, releasing the gate after hold
// seconds, the same way a driver callback would.
func render(engine *audio.Engine, params *audio.Params, hold float64, duration float64) []float32 {
	sampleRate := engine.SampleRate()
	totalFrames := int(float64(sampleRate) * duration)
	if totalFrames < 1 {
		totalFrames = 1
	}
	releaseAt := int(float64(sampleRate) * hold)
	block := make([]float32, engine.FramesPerBlock()*2)
	samples := make([]float32, 0, totalFrames*2)

	params.SetNoteOn(true)
	for rendered := 0; rendered < totalFrames; {
		if rendered >= releaseAt {
			params.SetNoteOn(false)
		}
		n := engine.FramesPerBlock()
		if rendered+n > totalFrames {
			n = totalFrames - rendered
		}
		engine.Process(block[:n*2])
		samples = append(samples, block[:n*2]...)
		rendered += n
	}
	return samples
}

func writeWav(path string, samples []float32, sampleRate int) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	encoder := wav.NewEncoder(file, sampleRate, 16, 2, 1)
	buf := &goaudio.Float32Buffer{
		Format: &goaudio.Format{
			SampleRate:  sampleRate,
			NumChannels: 2,
		},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := encoder.Write(buf); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return encoder.Close()
}
