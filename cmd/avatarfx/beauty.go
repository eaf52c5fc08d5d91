package main

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/opd-ai/avatarfx/av"
	"github.com/opd-ai/avatarfx/av/compositor"
	"github.com/opd-ai/avatarfx/av/video"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newBeautyCmd(opts *options) *cobra.Command {
	var in, out, landmarks string
	var smoothing, whitening, brightness, contrast float64
	var lipstick, eyeshadow, blush string

	cmd := &cobra.Command{
		Use:   "beauty",
		Short: "Apply the beauty filter and makeup to an image",
		Long: `Load an image (path, file://, http(s):// or data: URL), run skin smoothing,
whitening and brightness/contrast over it, paint makeup for the regions in an
optional landmarks JSON file, and write the result as PNG.

Landmarks JSON: {"lips":[{"x":..,"y":..}], "leftEye":[..], "rightEye":[..],
"face":{"x":..,"y":..,"width":..,"height":..}}`,
		Example: "  avatarfx beauty --in face.jpg --out face.png --smoothing 0.8 --lipstick '#b0304a' --landmarks face.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			sc, err := cfg.SessionConfig()
			if err != nil {
				return err
			}
			sc.Images = nil

			session := av.NewSession(sc, nil, nil)
			defer session.Close()

			preset, err := loadPreset(cfg)
			if err != nil {
				return err
			}
			if preset != nil {
				preset.ApplyTo(session)
			}

			u := video.BeautyUpdate{}
			enabled := true
			u.Enabled = &enabled
			f := cmd.Flags()
			if f.Changed("smoothing") {
				u.Smoothing = &smoothing
			}
			if f.Changed("whitening") {
				u.Whitening = &whitening
			}
			if f.Changed("brightness") {
				u.Brightness = &brightness
			}
			if f.Changed("contrast") {
				u.Contrast = &contrast
			}
			u.Lipstick = makeupFlag(f.Changed("lipstick"), lipstick)
			u.Eyeshadow = makeupFlag(f.Changed("eyeshadow"), eyeshadow)
			u.Blush = makeupFlag(f.Changed("blush"), blush)
			settings := session.Beauty().Update(u)

			var lm *video.FaceLandmarks
			if landmarks != "" {
				if lm, err = readLandmarks(landmarks); err != nil {
					return err
				}
			}

			img, err := compositor.NewResourceLoader().Load(cmd.Context(), in)
			if err != nil {
				return err
			}

			filter := video.NewBeautyFilter(session.Beauty())
			result, err := filter.ApplyWithLandmarks(video.FrameFromImage(img), lm)
			if err != nil {
				return err
			}
			if err := writePNG(out, result.Image()); err != nil {
				return err
			}

			opts.logger.WithFields(logrus.Fields{
				"function":  "beauty",
				"width":     result.Width,
				"height":    result.Height,
				"smoothing": settings.Smoothing,
				"whitening": settings.Whitening,
				"landmarks": lm != nil,
				"output":    out,
			}).Info("Beauty filter applied")
			return nil
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "input image reference")
	cmd.Flags().StringVar(&out, "out", "", "output PNG file")
	cmd.Flags().StringVar(&landmarks, "landmarks", "", "face landmarks JSON file")
	cmd.Flags().Float64Var(&smoothing, "smoothing", 0.5, "skin smoothing strength (0..1)")
	cmd.Flags().Float64Var(&whitening, "whitening", 0.2, "whitening strength (0..1)")
	cmd.Flags().Float64Var(&brightness, "brightness", 0, "brightness adjustment (-50..50)")
	cmd.Flags().Float64Var(&contrast, "contrast", 0, "contrast adjustment (-50..50)")
	cmd.Flags().StringVar(&lipstick, "lipstick", "", "enable lipstick with a #rrggbb color")
	cmd.Flags().StringVar(&eyeshadow, "eyeshadow", "", "enable eyeshadow with a #rrggbb color")
	cmd.Flags().StringVar(&blush, "blush", "", "enable blush with a #rrggbb color")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

// makeupFlag enables an element when its flag was given. An empty value
// keeps the configured color.
func makeupFlag(changed bool, color string) *video.MakeupUpdate {
	if !changed {
		return nil
	}
	enabled := true
	u := &video.MakeupUpdate{Enabled: &enabled}
	if color != "" {
		u.Color = &color
	}
	return u
}

func readLandmarks(path string) (*video.FaceLandmarks, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lm video.FaceLandmarks
	if err := json.Unmarshal(data, &lm); err != nil {
		return nil, fmt.Errorf("decode landmarks %s: %w", path, err)
	}
	return &lm, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
