package glcompile

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/shaderplate/internal/logger"
	"github.com/Faultbox/shaderplate/internal/shaderkey"
)

func init() {
	// OpenGL calls must be made from the main thread
	runtime.LockOSThread()
}

// computeShader is GL_COMPUTE_SHADER, which the 4.1 core bindings lack.
const computeShader = 0x91B9

var shaderTypes = map[shaderkey.Stage]uint32{
	shaderkey.Vertex:      gl.VERTEX_SHADER,
	shaderkey.Geometry:    gl.GEOMETRY_SHADER,
	shaderkey.TessControl: gl.TESS_CONTROL_SHADER,
	shaderkey.TessEval:    gl.TESS_EVALUATION_SHADER,
	shaderkey.Fragment:    gl.FRAGMENT_SHADER,
	shaderkey.Compute:     computeShader,
}

// ContextConfig selects the OpenGL context version.
type ContextConfig struct {
	Major int
	Minor int
	Core  bool
}

// Context is a hidden window with a current OpenGL context. It implements
// Driver. Use it from the goroutine that created it.
type Context struct {
	window    *sdl.Window
	glContext sdl.GLContext
}

// NewContext creates a hidden window and makes its GL context current.
func NewContext(cfg ContextConfig) (*Context, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, fmt.Errorf("SDL_Init failed: %w", err)
	}

	// Attributes must be set before the window exists
	sdl.GLSetAttribute(sdl.GL_CONTEXT_MAJOR_VERSION, cfg.Major)
	sdl.GLSetAttribute(sdl.GL_CONTEXT_MINOR_VERSION, cfg.Minor)
	if cfg.Core {
		sdl.GLSetAttribute(sdl.GL_CONTEXT_PROFILE_MASK, sdl.GL_CONTEXT_PROFILE_CORE)
	} else {
		sdl.GLSetAttribute(sdl.GL_CONTEXT_PROFILE_MASK, sdl.GL_CONTEXT_PROFILE_COMPATIBILITY)
	}

	c := &Context{}
	var err error
	c.window, err = sdl.CreateWindow(
		"shaderplate",
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		1, 1,
		uint32(sdl.WINDOW_OPENGL|sdl.WINDOW_HIDDEN),
	)
	if err != nil {
		sdl.Quit()
		return nil, fmt.Errorf("SDL_CreateWindow failed: %w", err)
	}

	c.glContext, err = c.window.GLCreateContext()
	if err != nil {
		c.window.Destroy()
		sdl.Quit()
		return nil, fmt.Errorf("SDL_GL_CreateContext failed: %w", err)
	}

	if err := gl.Init(); err != nil {
		c.Close()
		return nil, fmt.Errorf("initializing OpenGL: %w", err)
	}

	logger.Info("GL context created",
		zap.String("version", c.Version()),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)
	return c, nil
}

// Version returns the driver's GL_VERSION string.
func (c *Context) Version() string {
	return gl.GoStr(gl.GetString(gl.VERSION))
}

// Close destroys the context and shuts SDL down.
func (c *Context) Close() {
	if c.glContext != nil {
		sdl.GLDeleteContext(c.glContext)
	}
	if c.window != nil {
		c.window.Destroy()
	}
	sdl.Quit()
}

// Compile implements Driver.
func (c *Context) Compile(stage shaderkey.Stage, source string) (uint32, string, bool) {
	kind, ok := shaderTypes[stage]
	if !ok {
		return 0, fmt.Sprintf("no shader type for stage %s", stage), false
	}

	shader := gl.CreateShader(kind)
	if shader == 0 {
		return 0, fmt.Sprintf("driver cannot create %s shaders", stage), false
	}
	csource, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csource, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	log := shaderInfoLog(shader)
	if status == gl.FALSE {
		gl.DeleteShader(shader)
		return 0, log, false
	}
	return shader, log, true
}

// Link implements Driver. The program is deleted once linked.
func (c *Context) Link(ids []uint32) (string, bool) {
	program := gl.CreateProgram()
	defer gl.DeleteProgram(program)
	for _, id := range ids {
		gl.AttachShader(program, id)
	}
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)

	var logLen int32
	gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLen)
	if logLen <= 1 {
		return "", status != gl.FALSE
	}
	log := make([]byte, logLen)
	gl.GetProgramInfoLog(program, logLen, nil, &log[0])
	return strings.TrimRight(string(log), "\x00"), status != gl.FALSE
}

// Delete implements Driver.
func (c *Context) Delete(ids []uint32) {
	for _, id := range ids {
		gl.DeleteShader(id)
	}
}

func shaderInfoLog(shader uint32) string {
	var logLen int32
	gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
	if logLen <= 1 {
		return ""
	}
	log := make([]byte, logLen)
	gl.GetShaderInfoLog(shader, logLen, nil, &log[0])
	return strings.TrimRight(string(log), "\x00")
}
