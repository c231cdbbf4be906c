package resource

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"

	"github.com/Faultbox/shaderplate/internal/uniform"
)

var (
	red  = color.NRGBA{R: 255, A: 255}
	blue = color.NRGBA{B: 255, A: 255}
)

func writePNG(t *testing.T, path string, w, h int, top, bottom color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := top
			if y >= h/2 {
				c = bottom
			}
			img.SetNRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

func TestLoadTextureFlip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grad.png")
	writePNG(t, path, 2, 2, red, blue)

	l := NewLoader(nil)
	tests := []struct {
		name string
		flip bool
		top  color.NRGBA
	}{
		{"as stored", false, red},
		{"flipped", true, blue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := l.LoadTexture(path, uniform.TextureOptions{Flip: tt.flip})
			if err != nil {
				t.Fatalf("LoadTexture: %v", err)
			}
			res, ok := l.Resource(h)
			if !ok || res.Kind != KindTexture {
				t.Fatalf("unexpected resource %+v", res)
			}
			if got := res.Image().NRGBAAt(0, 0); got != tt.top {
				t.Errorf("top pixel = %v, want %v", got, tt.top)
			}
		})
	}
}

func TestLoadTextureSharesHandles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	writePNG(t, path, 2, 2, red, red)

	l := NewLoader(nil)
	a, err := l.LoadTexture(path, uniform.TextureOptions{})
	if err != nil {
		t.Fatalf("LoadTexture: %v", err)
	}
	b, _ := l.LoadTexture(path, uniform.TextureOptions{})
	c, _ := l.LoadTexture(path, uniform.TextureOptions{Wrap: "clamp"})
	if a != b {
		t.Errorf("expected identical requests to share a handle, got %d and %d", a, b)
	}
	if a == c {
		t.Error("expected different options to get their own handle")
	}
	if l.Len() != 2 {
		t.Errorf("expected 2 resources, got %d", l.Len())
	}

	l.Reset()
	if _, ok := l.Resource(a); ok {
		t.Error("expected handles invalid after Reset")
	}
}

func TestLoadTextureMipmap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.png")
	writePNG(t, path, 4, 2, red, blue)

	l := NewLoader(nil)
	h, err := l.LoadTexture(path, uniform.TextureOptions{Mipmap: true})
	if err != nil {
		t.Fatalf("LoadTexture: %v", err)
	}
	res, _ := l.Resource(h)
	want := []image.Point{{4, 2}, {2, 1}, {1, 1}}
	if len(res.Levels) != len(want) {
		t.Fatalf("expected %d levels, got %d", len(want), len(res.Levels))
	}
	for i, p := range want {
		if got := res.Levels[i].Bounds().Size(); got != p {
			t.Errorf("level %d: size %v, want %v", i, got, p)
		}
	}
}

func TestLoadTextureErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.png")
	if err := os.WriteFile(bad, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(nil)
	if _, err := l.LoadTexture(bad, uniform.TextureOptions{}); err == nil {
		t.Error("expected decode error")
	}
	if _, err := l.LoadTexture(filepath.Join(dir, "missing.png"), uniform.TextureOptions{}); err == nil {
		t.Error("expected missing file error")
	}
	if l.Len() != 0 {
		t.Errorf("failed loads must not allocate handles, got %d", l.Len())
	}
}

func TestLoadCubemap(t *testing.T) {
	dir := t.TempDir()
	var faces [6]string
	for i := range faces {
		faces[i] = filepath.Join(dir, "face"+string(rune('0'+i))+".png")
		size := 4
		if i > 0 {
			size = 2
		}
		writePNG(t, faces[i], size, size, red, red)
	}

	l := NewLoader(nil)
	h, err := l.LoadCubemap(faces, uniform.TextureOptions{})
	if err != nil {
		t.Fatalf("LoadCubemap: %v", err)
	}
	res, _ := l.Resource(h)
	for i, f := range res.Faces {
		if got := f.Bounds().Size(); got != (image.Point{4, 4}) {
			t.Errorf("face %d: size %v, want 4x4", i, got)
		}
	}

	writePNG(t, faces[0], 4, 2, red, red)
	l = NewLoader(nil)
	if _, err := l.LoadCubemap(faces, uniform.TextureOptions{}); err == nil {
		t.Error("expected error for non-square face")
	}
}

func TestLoadVolume(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name     string
		size     int
		channels int
		wantErr  bool
	}{
		{"single channel", 8, 1, false},
		{"rgba", 32, 4, false},
		{"size mismatch", 5, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".raw")
			if err := os.WriteFile(path, make([]byte, tt.size), 0o644); err != nil {
				t.Fatal(err)
			}
			l := NewLoader(nil)
			h, err := l.LoadVolume(path, 2, 2, 2)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadVolume: %v", err)
			}
			res, _ := l.Resource(h)
			if res.Channels != tt.channels || res.Size != [3]int{2, 2, 2} {
				t.Errorf("unexpected volume %d channels, size %v", res.Channels, res.Size)
			}
		})
	}
}

func TestLoadSound(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quiet.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	format := beep.Format{SampleRate: 44100, NumChannels: 2, Precision: 2}
	if err := wav.Encode(f, beep.Silence(1024), format); err != nil {
		t.Fatalf("wav.Encode: %v", err)
	}
	f.Close()

	l := NewLoader(nil)
	h, err := l.LoadSound(path)
	if err != nil {
		t.Fatalf("LoadSound: %v", err)
	}
	res, _ := l.Resource(h)
	if res.Sound == nil || res.Sound.Samples != 1024 {
		t.Fatalf("unexpected sound %+v", res.Sound)
	}
	if res.Sound.Format.SampleRate != 44100 {
		t.Errorf("sample rate = %d", res.Sound.Format.SampleRate)
	}
	img := res.Image()
	if got := img.Bounds().Size(); got != (image.Point{SoundTextureWidth, 2}) {
		t.Fatalf("sound texture size %v", got)
	}
	// Silence: flat spectrum at zero and a centered waveform.
	if c := img.NRGBAAt(10, 0); c.R != 0 {
		t.Errorf("spectrum = %d, want 0", c.R)
	}
	if c := img.NRGBAAt(10, 1); c.R != 128 {
		t.Errorf("waveform = %d, want 128", c.R)
	}
}
