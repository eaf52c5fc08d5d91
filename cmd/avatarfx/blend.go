package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/opd-ai/avatarfx/av/compositor"
	"github.com/opd-ai/avatarfx/expression"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newBlendCmd(opts *options) *cobra.Command {
	var out string
	var weights, scores, images map[string]string

	cmd := &cobra.Command{
		Use:   "blend",
		Short: "Crossfade the emotion images for a set of weights",
		Long: `Composite the configured emotion images into one PNG. Weights are given
directly with --weights, or derived from face-tracker blendshape scores
with --scores. Images come from the config file and may be overridden
with --images.`,
		Example: `  avatarfx blend --weights happy=0.7,neutral=0.3 --out blend.png
  avatarfx blend --scores mouthSmileLeft=0.9 --images happy=smile.png,neutral=idle.png --out blend.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Images == nil {
				cfg.Images = make(map[string]string)
			}
			for k, v := range images {
				cfg.Images[strings.ToLower(k)] = v
			}
			set, err := cfg.ImageSet()
			if err != nil {
				return err
			}

			w, err := resolveWeights(weights, scores)
			if err != nil {
				return err
			}

			comp, err := compositor.New(cfg.Video.Width, cfg.Video.Height, nil)
			if err != nil {
				return err
			}
			defer comp.Close()

			res, err := comp.Configure(cmd.Context(), set)
			if err != nil {
				return err
			}

			canvas, drawn := comp.Composite(w)
			if err := writePNG(out, canvas); err != nil {
				return err
			}

			opts.logger.WithFields(logrus.Fields{
				"function": "blend",
				"loaded":   res.Loaded,
				"failed":   res.Failed,
				"drawn":    drawn,
				"dominant": w.Dominant().String(),
				"output":   out,
			}).Info("Composite written")
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "output PNG file")
	cmd.Flags().StringToStringVar(&weights, "weights", nil, "emotion weights, e.g. happy=0.7,neutral=0.3 (normalized)")
	cmd.Flags().StringToStringVar(&scores, "scores", nil, "blendshape scores, e.g. mouthSmileLeft=0.9")
	cmd.Flags().StringToStringVar(&images, "images", nil, "emotion image overrides, e.g. happy=smile.png")
	cmd.MarkFlagsMutuallyExclusive("weights", "scores")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

// resolveWeights builds normalized weights from explicit emotion weights
// or from blendshape scores. With neither it returns the neutral default.
func resolveWeights(weights, scores map[string]string) (expression.Weights, error) {
	if len(scores) > 0 {
		list := make([]expression.Score, 0, len(scores))
		for _, name := range sortedKeys(scores) {
			v, err := strconv.ParseFloat(scores[name], 64)
			if err != nil {
				return expression.Weights{}, fmt.Errorf("score %s: %w", name, err)
			}
			list = append(list, expression.Score{Category: name, Score: v})
		}
		return expression.NewMapper().Map(list), nil
	}

	if len(weights) == 0 {
		return expression.DefaultWeights(), nil
	}

	var w expression.Weights
	for _, key := range sortedKeys(weights) {
		e, err := expression.ParseEmotion(strings.ToLower(key))
		if err != nil {
			return expression.Weights{}, err
		}
		v, err := strconv.ParseFloat(weights[key], 64)
		if err != nil {
			return expression.Weights{}, fmt.Errorf("weight %s: %w", key, err)
		}
		if v < 0 {
			return expression.Weights{}, fmt.Errorf("weight %s: must not be negative", key)
		}
		w[e] = v
	}
	return w.Normalize(), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
