package main

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"time"

	"CraneGuard/pkg/camera"
	"CraneGuard/pkg/detector"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	endpointFlag string
	apiKeyFlag   string
	timeoutFlag  time.Duration
	widthFlag    int
	heightFlag   int
	qualityFlag  int
	verboseFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "detect [image]",
	Short: "Run one frame through the human detection endpoint",
	Long: `detect rasterizes an image file exactly like the capture pipeline does
(fixed size, JPEG data URL) and posts it to the detection endpoint.

The normalized result is printed as JSON. The exit code is 2 when people
were detected, 1 on error and 0 otherwise.

Examples:
  detect ./frame.jpg
  detect --endpoint http://gpu-box:3000/api/v1/detect-humans ./yard.png
  detect --width 1280 --height 720 --timeout 40s ./frame.jpg`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runDetect,
}

func init() {
	rootCmd.Flags().StringVarP(&endpointFlag, "endpoint", "e", envOr("DETECTION_ENDPOINT", "http://localhost:3000/api/v1/detect-humans"), "Detection endpoint URL")
	rootCmd.Flags().StringVar(&apiKeyFlag, "api-key", os.Getenv("DETECTION_API_KEY"), "API key sent as apikey and bearer token")
	rootCmd.Flags().DurationVarP(&timeoutFlag, "timeout", "t", 20*time.Second, "Request timeout")
	rootCmd.Flags().IntVar(&widthFlag, "width", 640, "Raster width")
	rootCmd.Flags().IntVar(&heightFlag, "height", 360, "Raster height")
	rootCmd.Flags().IntVar(&qualityFlag, "quality", 80, "JPEG quality")
	rootCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log request details")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func runDetect(cmd *cobra.Command, args []string) error {
	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetLevel(logrus.WarnLevel)
	if verboseFlag {
		logger.SetLevel(logrus.DebugLevel)
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decode %s: %w", args[0], err)
	}
	logger.WithFields(logrus.Fields{
		"format": format,
		"bounds": img.Bounds().String(),
	}).Debug("Image loaded")

	raster := camera.Rasterizer{Width: widthFlag, Height: heightFlag, Quality: qualityFlag}
	data, err := raster.Encode(img)
	if err != nil {
		return fmt.Errorf("rasterize: %w", err)
	}
	frame := camera.Frame{JPEG: data, Width: widthFlag, Height: heightFlag, CapturedAt: time.Now()}

	opts := []detector.Option{detector.WithLogger(logger)}
	if apiKeyFlag != "" {
		opts = append(opts,
			detector.WithHeader("apikey", apiKeyFlag),
			detector.WithHeader("Authorization", "Bearer "+apiKeyFlag),
		)
	}
	client := detector.New(endpointFlag, opts...)

	ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag)
	defer cancel()

	result, err := client.Detect(ctx, frame.DataURL())
	if err != nil {
		if detector.IsRateLimited(err) {
			return fmt.Errorf("endpoint is rate limiting requests: %w", err)
		}
		return err
	}
	result = result.Normalize()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}

	if result.HumanDetected {
		os.Exit(2)
	}
	return nil
}
