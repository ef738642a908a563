package signature

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	root   string
	source string
	binary string
	self   string
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	f := fixture{
		root:   root,
		source: filepath.Join(root, "etc", "tests", "runtime", "basic.ny"),
		binary: filepath.Join(root, "build", "ny"),
		self:   filepath.Join(root, "build", "nytest"),
	}
	writeFile(t, f.source, "print(1)\n")
	writeFile(t, f.binary, "compiler-binary")
	writeFile(t, f.self, "orchestrator")
	writeFile(t, filepath.Join(root, "src", "main.c"), "int main(void){return 0;}\n")
	writeFile(t, filepath.Join(root, "src", "CMakeLists.txt"), "project(ny)\n")
	writeFile(t, filepath.Join(root, "std", "core", "core.ny"), "fn id(x) = x\n")
	return f
}

func (f fixture) engine(mode string) *Engine {
	return New(Options{Root: f.root, Self: f.self, CompilerMode: mode, OS: "linux", Arch: "amd64"})
}

func (f fixture) inputs() Inputs {
	return Inputs{
		Source:      f.source,
		Binary:      f.binary,
		Interactive: true,
		Native:      true,
		OptProfile:  "none",
		Env:         []string{"NYTRIX_HOST_CFLAGS=-O2"},
	}
}

func TestSignatureDeterministic(t *testing.T) {
	f := newFixture(t)

	first := f.engine("").TestSignature(f.inputs())
	e := f.engine("")
	assert.Equal(t, first, e.TestSignature(f.inputs()))
	assert.Equal(t, first, e.TestSignature(f.inputs()))
	assert.Len(t, first, 64)

	native := f.engine("").NativeSignature(f.inputs())
	assert.Equal(t, native, f.engine("").NativeSignature(f.inputs()))
	assert.Len(t, native, NativeKeyLength)
}

func TestSignatureSourceChange(t *testing.T) {
	f := newFixture(t)
	before := f.engine("").TestSignature(f.inputs())

	fh, err := os.OpenFile(f.source, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = fh.WriteString(" ")
	require.NoError(t, err)
	require.NoError(t, fh.Close())

	assert.NotEqual(t, before, f.engine("").TestSignature(f.inputs()))
}

func TestSignatureFieldSensitivity(t *testing.T) {
	f := newFixture(t)
	e := f.engine("")
	base := e.TestSignature(f.inputs())

	mutations := map[string]func(in *Inputs){
		"interactive": func(in *Inputs) { in.Interactive = false },
		"native":      func(in *Inputs) { in.Native = false },
		"opt":         func(in *Inputs) { in.OptProfile = "speed" },
		"flags":       func(in *Inputs) { in.Flags = "-g" },
		"cflags":      func(in *Inputs) { in.Env = []string{"NYTRIX_HOST_CFLAGS=-O3"} },
		"triple":      func(in *Inputs) { in.Env = append(in.Env, "NYTRIX_HOST_TRIPLE=armv7") },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			in := f.inputs()
			mutate(&in)
			assert.NotEqual(t, base, e.TestSignature(in))
		})
	}
}

func TestNativeSignatureIgnoresInteractive(t *testing.T) {
	f := newFixture(t)
	e := f.engine("")

	with := f.inputs()
	without := f.inputs()
	without.Interactive = false

	assert.Equal(t, e.NativeSignature(with), e.NativeSignature(without))
	assert.NotEqual(t, e.TestSignature(with), e.TestSignature(without))

	opt := f.inputs()
	opt.OptProfile = "speed"
	assert.NotEqual(t, e.NativeSignature(with), e.NativeSignature(opt))
}

func TestFileDigestSentinel(t *testing.T) {
	f := newFixture(t)
	e := f.engine("")

	missing := filepath.Join(f.root, "missing.ny")
	assert.Equal(t, missing+":0:0", e.FileDigest(missing))

	digest := e.FileDigest(f.source)
	assert.True(t, strings.HasPrefix(digest, f.source+":9:"), digest)

	in := f.inputs()
	in.Source = missing
	sig := e.TestSignature(in)
	assert.NotEqual(t, e.TestSignature(f.inputs()), sig)
	assert.Equal(t, sig, f.engine("").TestSignature(in))
}

func TestCompilerSignatureTree(t *testing.T) {
	f := newFixture(t)

	before := f.engine("").CompilerSignature(f.binary)
	assert.True(t, strings.HasPrefix(before, "2:"), before)

	writeFile(t, filepath.Join(f.root, "src", "lexer.h"), "#pragma once\n")
	writeFile(t, filepath.Join(f.root, "src", "notes.txt"), "ignored\n")
	after := f.engine("").CompilerSignature(f.binary)
	assert.True(t, strings.HasPrefix(after, "3:"), after)

	// Changing the binary does not affect the tree signature.
	writeFile(t, f.binary, "rebuilt")
	assert.Equal(t, after, f.engine("").CompilerSignature(f.binary))
}

func TestCompilerSignatureModes(t *testing.T) {
	f := newFixture(t)

	strict := f.engine(CompilerModeStrict).CompilerSignature(f.binary)
	assert.True(t, strings.HasPrefix(strict, "bin:"+f.binary+":"), strict)
	assert.Equal(t, strict, f.engine(CompilerModeBinary).CompilerSignature(f.binary))

	require.NoError(t, os.RemoveAll(filepath.Join(f.root, "src")))
	fallback := f.engine("").CompilerSignature(f.binary)
	assert.Equal(t, strict, fallback)
}

func TestCompilerSignatureMemoized(t *testing.T) {
	f := newFixture(t)
	e := f.engine("")
	before := e.CompilerSignature(f.binary)

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(f.root, "src", "main.c"), later, later))

	assert.Equal(t, before, e.CompilerSignature(f.binary))
	assert.NotEqual(t, before, f.engine("").CompilerSignature(f.binary))
}

func TestStdlibSignature(t *testing.T) {
	f := newFixture(t)
	e := f.engine("")
	assert.True(t, strings.HasPrefix(e.StdlibSignature(), "1:"))

	require.NoError(t, os.RemoveAll(filepath.Join(f.root, "std")))
	assert.Equal(t, "missing", f.engine("").StdlibSignature())
}

func TestFieldsOrder(t *testing.T) {
	f := newFixture(t)
	e := f.engine("")

	fields := e.Fields(f.inputs(), true)
	require.GreaterOrEqual(t, len(fields), 5)
	assert.Equal(t, CacheRevision, fields[0])
	assert.Equal(t, "platform=linux/amd64", fields[1])
	assert.Equal(t, "os=linux", fields[2])
	assert.Equal(t, "arch=amd64", fields[3])
	assert.Equal(t, "repl=1", fields[4])
	assert.Equal(t, "native=1", fields[5])

	native := e.Fields(f.inputs(), false)
	assert.Len(t, native, len(fields)-1)
	assert.Equal(t, "native=1", native[4])
}
