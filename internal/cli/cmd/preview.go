package cmd

import (
	"image"
	"image/png"
	"os"

	"github.com/charmbracelet/log"
	"github.com/gogpu/gputypes"
	"github.com/matjam/shaderpaper/internal/cli/cmd/utils"
	"github.com/matjam/shaderpaper/internal/gpu"
	"github.com/matjam/shaderpaper/internal/surface"
	"github.com/matjam/shaderpaper/internal/types"
	"github.com/spf13/cobra"
)

func NewPreviewCmd() *cobra.Command {
	var (
		out    string
		width  uint32
		height uint32
		px     float64
		py     float64
	)

	cmd := &cobra.Command{
		Use:   "preview [shader.wgsl]",
		Short: "Render one frame to a PNG without a compositor",
		Long: `Renders a single frame of the given shader (or the builtin one) into
a PNG file. Useful for checking a shader before loading it into the
running daemon.`,
		Args: cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			device, err := gpu.OpenDevice()
			if err != nil {
				log.Fatalf("Failed to open a GPU device: %v", err)
			}
			defer device.Close()

			dims := types.SurfaceDimensions{Width: width, Height: height}

			offscreen := gpu.NewOffscreen(device.HAL(), device.Queue(),
				func(dims types.SurfaceDimensions, pixels []byte) error {
					return writePNG(out, dims, pixels)
				})
			defer offscreen.Destroy()

			if err := offscreen.Configure(surface.Config{
				Dimensions: dims,
				Format:     gputypes.TextureFormatBGRA8Unorm,
				Mode:       surface.PresentModeMailbox,
			}); err != nil {
				log.Fatalf("Failed to configure the render target: %v", err)
			}

			painter := gpu.NewPainter(device.HAL(), device.Queue())
			defer painter.Destroy()

			if len(args) == 1 {
				source, err := os.ReadFile(utils.CanonicalPath(args[0]))
				if err != nil {
					log.Fatalf("Failed to read shader %s: %v", args[0], err)
				}
				if err := painter.SetSource(string(source)); err != nil {
					log.Fatalf("Shader rejected: %v", err)
				}
			}

			if err := painter.Prepare(gputypes.TextureFormatBGRA8Unorm); err != nil {
				log.Fatalf("Failed to build the render pipeline: %v", err)
			}

			// Negative coordinates mean "centre of the surface".
			if px < 0 {
				px = float64(width) / 2
			}
			if py < 0 {
				py = float64(height) / 2
			}

			u := gpu.Normalize(types.PointerSample{X: px, Y: py}, dims)
			if err := painter.WriteUniform(u); err != nil {
				log.Fatalf("Failed to write uniforms: %v", err)
			}

			frame, err := offscreen.Acquire()
			if err != nil {
				log.Fatalf("Failed to acquire a frame: %v", err)
			}
			if err := painter.Paint(frame); err != nil {
				log.Fatalf("Failed to render: %v", err)
			}
			if err := offscreen.Present(frame); err != nil {
				log.Fatalf("Failed to read the frame back: %v", err)
			}

			log.Infof("Wrote %dx%d preview to %s", width, height, out)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "preview.png", "output PNG path")
	cmd.Flags().Uint32Var(&width, "width", 1920, "render width in pixels")
	cmd.Flags().Uint32Var(&height, "height", 1080, "render height in pixels")
	cmd.Flags().Float64Var(&px, "pointer-x", -1, "pointer x position in pixels")
	cmd.Flags().Float64Var(&py, "pointer-y", -1, "pointer y position in pixels")

	return cmd
}

// writePNG converts the BGRA pixels the swapchain reads back into an NRGBA
// image and encodes it to path.
func writePNG(path string, dims types.SurfaceDimensions, pixels []byte) error {
	img := image.NewNRGBA(image.Rect(0, 0, int(dims.Width), int(dims.Height)))
	for i := 0; i+3 < len(pixels) && i+3 < len(img.Pix); i += 4 {
		img.Pix[i+0] = pixels[i+2]
		img.Pix[i+1] = pixels[i+1]
		img.Pix[i+2] = pixels[i+0]
		img.Pix[i+3] = pixels[i+3]
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
