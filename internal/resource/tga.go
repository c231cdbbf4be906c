package resource

import (
	"fmt"
	"image"
)

// TGA image types.
const (
	tgaTrueColor    = 2
	tgaGray         = 3
	tgaTrueColorRLE = 10
	tgaGrayRLE      = 11
)

const tgaHeaderSize = 18

// decodeTGA decodes uncompressed and RLE true-color or grayscale TGA data.
// TGA alpha is straight, so the result is non-premultiplied.
func decodeTGA(data []byte) (*image.NRGBA, error) {
	if len(data) < tgaHeaderSize {
		return nil, fmt.Errorf("TGA data too short")
	}

	idLength := int(data[0])
	colorMapType := data[1]
	imageType := int(data[2])
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bpp := int(data[16])
	descriptor := data[17]

	if colorMapType != 0 {
		return nil, fmt.Errorf("color-mapped TGA not supported")
	}
	gray := imageType == tgaGray || imageType == tgaGrayRLE
	switch {
	case imageType != tgaTrueColor && imageType != tgaTrueColorRLE && !gray:
		return nil, fmt.Errorf("unsupported TGA type %d", imageType)
	case gray && bpp != 8:
		return nil, fmt.Errorf("unsupported grayscale TGA bit depth %d", bpp)
	case !gray && bpp != 24 && bpp != 32:
		return nil, fmt.Errorf("unsupported TGA bit depth %d", bpp)
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("empty TGA image %dx%d", width, height)
	}

	offset := tgaHeaderSize + idLength
	if offset > len(data) {
		return nil, fmt.Errorf("TGA data truncated")
	}

	d := tgaDecoder{
		img:         image.NewNRGBA(image.Rect(0, 0, width, height)),
		src:         data[offset:],
		width:       width,
		height:      height,
		bpp:         bpp / 8,
		topToBottom: descriptor&0x20 != 0,
	}
	var err error
	if imageType == tgaTrueColorRLE || imageType == tgaGrayRLE {
		err = d.decodeRLE()
	} else {
		err = d.decodeRaw()
	}
	if err != nil {
		return nil, err
	}
	return d.img, nil
}

type tgaDecoder struct {
	img         *image.NRGBA
	src         []byte
	pos         int
	width       int
	height      int
	bpp         int
	topToBottom bool
}

// pixel reads one pixel at the current position as RGBA.
func (d *tgaDecoder) pixel() ([4]uint8, bool) {
	if d.pos+d.bpp > len(d.src) {
		return [4]uint8{}, false
	}
	p := d.src[d.pos : d.pos+d.bpp]
	d.pos += d.bpp
	switch d.bpp {
	case 1:
		return [4]uint8{p[0], p[0], p[0], 255}, true
	case 3:
		return [4]uint8{p[2], p[1], p[0], 255}, true
	default:
		return [4]uint8{p[2], p[1], p[0], p[3]}, true
	}
}

func (d *tgaDecoder) set(i int, c [4]uint8) {
	x, y := i%d.width, i/d.width
	if !d.topToBottom {
		y = d.height - 1 - y
	}
	copy(d.img.Pix[d.img.PixOffset(x, y):], c[:])
}

func (d *tgaDecoder) decodeRaw() error {
	for i, n := 0, d.width*d.height; i < n; i++ {
		c, ok := d.pixel()
		if !ok {
			return fmt.Errorf("TGA pixel data truncated")
		}
		d.set(i, c)
	}
	return nil
}

func (d *tgaDecoder) decodeRLE() error {
	count := d.width * d.height
	for i := 0; i < count; {
		if d.pos >= len(d.src) {
			return fmt.Errorf("TGA RLE data truncated at pixel %d", i)
		}
		packet := d.src[d.pos]
		d.pos++
		n := int(packet&0x7f) + 1

		if packet&0x80 != 0 {
			c, ok := d.pixel()
			if !ok {
				return fmt.Errorf("TGA RLE data truncated at pixel %d", i)
			}
			for ; n > 0 && i < count; n-- {
				d.set(i, c)
				i++
			}
			continue
		}
		for ; n > 0 && i < count; n-- {
			c, ok := d.pixel()
			if !ok {
				return fmt.Errorf("TGA RLE data truncated at pixel %d", i)
			}
			d.set(i, c)
			i++
		}
	}
	return nil
}
