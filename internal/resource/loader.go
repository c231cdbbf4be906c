// Package resource loads the pictures, cubemaps, volumes and sounds that
// sampler uniforms bind. Handles returned by a Loader index its resource
// list and stay valid until Reset.
package resource

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"math"
	"math/cmplx"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Faultbox/shaderplate/internal/assets"
	"github.com/Faultbox/shaderplate/internal/logger"
	"github.com/Faultbox/shaderplate/internal/uniform"
)

// Kind identifies what a resource holds.
type Kind int

const (
	KindTexture Kind = iota
	KindCubemap
	KindVolume
	KindSound
)

func (k Kind) String() string {
	switch k {
	case KindTexture:
		return "texture"
	case KindCubemap:
		return "cubemap"
	case KindVolume:
		return "volume"
	case KindSound:
		return "sound"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// SoundTextureWidth is the width of the texture made from a sound. Row 0
// holds the spectrum and row 1 the waveform of the first samples.
const SoundTextureWidth = 512

// Resource is one loaded resource.
type Resource struct {
	Kind    Kind
	Path    string
	Options uniform.TextureOptions

	// Levels holds the mip chain of a texture or sound, level 0 first.
	Levels []*image.NRGBA
	// Faces holds the six cubemap faces in +X -X +Y -Y +Z -Z order.
	Faces [6]*image.NRGBA

	Volume   []byte
	Size     [3]int
	Channels int

	Sound *Sound
}

// Image returns level 0 of a texture or sound.
func (r *Resource) Image() *image.NRGBA {
	if len(r.Levels) == 0 {
		return nil
	}
	return r.Levels[0]
}

// Sound describes a decoded sound file.
type Sound struct {
	Format   beep.Format
	Samples  int
	Duration time.Duration
	Wave     []float32
}

// Loader implements uniform.ResourceFactory. Identical requests share a
// handle. A Loader is safe for concurrent use.
type Loader struct {
	assets *assets.Manager

	mu        sync.Mutex
	resources []*Resource
	byKey     map[string]int
}

// NewLoader creates a loader reading files through m. A nil m reads from
// the file system only.
func NewLoader(m *assets.Manager) *Loader {
	if m == nil {
		m = assets.NewManager()
	}
	return &Loader{
		assets: m,
		byKey:  make(map[string]int),
	}
}

// Resource returns the resource behind a handle.
func (l *Loader) Resource(handle int) (*Resource, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if handle < 0 || handle >= len(l.resources) {
		return nil, false
	}
	return l.resources[handle], true
}

// Len returns the number of loaded resources.
func (l *Loader) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.resources)
}

// Reset forgets every resource. Handles handed out before are invalid.
func (l *Loader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resources = nil
	l.byKey = make(map[string]int)
}

// LoadTexture decodes a picture.
func (l *Loader) LoadTexture(path string, opts uniform.TextureOptions) (int, error) {
	return l.load(fmt.Sprintf("texture|%s|%+v", path, opts), func() (*Resource, error) {
		img, err := l.decodeImage(path, opts.Flip)
		if err != nil {
			return nil, err
		}
		levels := []*image.NRGBA{img}
		if opts.Mipmap {
			levels = mipChain(img)
		}
		return &Resource{Kind: KindTexture, Path: path, Options: opts, Levels: levels}, nil
	})
}

// LoadCubemap decodes six faces. Faces that differ in size from the first
// are resampled to it.
func (l *Loader) LoadCubemap(faces [6]string, opts uniform.TextureOptions) (int, error) {
	key := fmt.Sprintf("cubemap|%s|%+v", strings.Join(faces[:], ","), opts)
	return l.load(key, func() (*Resource, error) {
		res := &Resource{Kind: KindCubemap, Path: faces[0], Options: opts}
		for i, face := range faces {
			img, err := l.decodeImage(face, opts.Flip)
			if err != nil {
				return nil, fmt.Errorf("cubemap face %d: %w", i, err)
			}
			if i == 0 {
				if b := img.Bounds(); b.Dx() != b.Dy() {
					return nil, fmt.Errorf("cubemap face %s is not square (%dx%d)", face, b.Dx(), b.Dy())
				}
			} else if size := res.Faces[0].Bounds().Size(); img.Bounds().Size() != size {
				logger.Warn("resampling cubemap face",
					zap.String("file", face),
					zap.Int("from", img.Bounds().Dx()),
					zap.Int("to", size.X),
				)
				img = imaging.Resize(img, size.X, size.Y, imaging.Lanczos)
			}
			res.Faces[i] = img
		}
		return res, nil
	})
}

// LoadVolume reads raw 8-bit voxels. The file must hold one or four
// channels per voxel.
func (l *Loader) LoadVolume(path string, width, height, depth int) (int, error) {
	key := fmt.Sprintf("volume|%s|%dx%dx%d", path, width, height, depth)
	return l.load(key, func() (*Resource, error) {
		if width <= 0 || height <= 0 || depth <= 0 {
			return nil, fmt.Errorf("bad volume size %dx%dx%d", width, height, depth)
		}
		data, err := l.assets.Load(path)
		if err != nil {
			return nil, err
		}
		voxels := width * height * depth
		var channels int
		switch len(data) {
		case voxels:
			channels = 1
		case voxels * 4:
			channels = 4
		default:
			return nil, fmt.Errorf("volume %s: %d bytes does not fit %dx%dx%d", path, len(data), width, height, depth)
		}
		return &Resource{
			Kind:     KindVolume,
			Path:     path,
			Volume:   data,
			Size:     [3]int{width, height, depth},
			Channels: channels,
		}, nil
	})
}

// LoadSound decodes a WAV file and builds its sound texture.
func (l *Loader) LoadSound(path string) (int, error) {
	return l.load("sound|"+path, func() (*Resource, error) {
		data, err := l.assets.Load(path)
		if err != nil {
			return nil, err
		}
		s, format, err := wav.Decode(io.NopCloser(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("decoding sound %s: %w", path, err)
		}
		defer s.Close()

		snd := &Sound{
			Format:   format,
			Samples:  s.Len(),
			Duration: format.SampleRate.D(s.Len()),
			Wave:     readWave(s, SoundTextureWidth),
		}
		return &Resource{
			Kind:   KindSound,
			Path:   path,
			Levels: []*image.NRGBA{soundTexture(snd.Wave)},
			Sound:  snd,
		}, nil
	})
}

func (l *Loader) load(key string, build func() (*Resource, error)) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if h, ok := l.byKey[key]; ok {
		return h, nil
	}
	res, err := build()
	if err != nil {
		return -1, err
	}
	l.resources = append(l.resources, res)
	h := len(l.resources) - 1
	l.byKey[key] = h

	logger.Debug("resource loaded",
		zap.Stringer("kind", res.Kind),
		zap.String("file", res.Path),
		zap.Int("handle", h),
	)
	return h, nil
}

func (l *Loader) decodeImage(path string, flip bool) (*image.NRGBA, error) {
	data, err := l.assets.Load(path)
	if err != nil {
		return nil, err
	}

	var img *image.NRGBA
	if strings.EqualFold(filepath.Ext(path), ".tga") {
		img, err = decodeTGA(data)
	} else {
		var src image.Image
		src, err = imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
		if err == nil {
			img = imaging.Clone(src)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if flip {
		img = imaging.FlipV(img)
	}
	return img, nil
}

// mipChain halves img down to 1x1.
func mipChain(img *image.NRGBA) []*image.NRGBA {
	levels := []*image.NRGBA{img}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	for w > 1 || h > 1 {
		w, h = max(w/2, 1), max(h/2, 1)
		levels = append(levels, imaging.Resize(levels[len(levels)-1], w, h, imaging.Box))
	}
	return levels
}

// readWave mixes the first n frames down to mono.
func readWave(s beep.Streamer, n int) []float32 {
	buf := make([][2]float64, n)
	wave := make([]float32, 0, n)
	for len(wave) < n {
		got, ok := s.Stream(buf[:n-len(wave)])
		for _, f := range buf[:got] {
			wave = append(wave, float32((f[0]+f[1])/2))
		}
		if !ok || got == 0 {
			break
		}
	}
	return wave
}

// soundTexture lays out the spectrum in row 0 and the waveform in row 1,
// both mapped to 0..255.
func soundTexture(wave []float32) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, SoundTextureWidth, 2))
	spectrum := magnitudes(wave)
	for x := 0; x < SoundTextureWidth; x++ {
		var s, w float64
		if i := x / 2; i < len(spectrum) {
			s = spectrum[i]
		}
		if x < len(wave) {
			w = float64(wave[x])*0.5 + 0.5
		} else {
			w = 0.5
		}
		setGray(img, x, 0, s)
		setGray(img, x, 1, w)
	}
	return img
}

// magnitudes returns the normalized DFT magnitudes of the first half of
// the spectrum of wave.
func magnitudes(wave []float32) []float64 {
	n := len(wave)
	if n == 0 {
		return nil
	}
	out := make([]float64, n/2)
	for k := range out {
		var sum complex128
		for t, v := range wave {
			sum += complex(float64(v), 0) * cmplx.Exp(complex(0, -2*math.Pi*float64(k*t)/float64(n)))
		}
		out[k] = min(cmplx.Abs(sum)/float64(n)*2, 1)
	}
	return out
}

func setGray(img *image.NRGBA, x, y int, v float64) {
	c := uint8(math.Round(min(max(v, 0), 1) * 255))
	i := img.PixOffset(x, y)
	img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c, c, c, 255
}
