package config

// This file contains the environment handed to spawned phases.

import (
	"strings"
)

// envList is an ordered KEY=VALUE list with map-like helpers.
type envList []string

func (e envList) index(key string) int {
	prefix := key + "="
	for i, kv := range e {
		if strings.HasPrefix(kv, prefix) {
			return i
		}
	}
	return -1
}

func (e envList) get(key string) (string, bool) {
	if i := e.index(key); i >= 0 {
		return e[i][len(key)+1:], true
	}
	return "", false
}

func (e *envList) set(key, value string) {
	kv := key + "=" + value
	if i := e.index(key); i >= 0 {
		(*e)[i] = kv
		return
	}
	*e = append(*e, kv)
}

func (e *envList) setDefault(key, value string) {
	if _, ok := e.get(key); !ok {
		e.set(key, value)
	}
}

func (e *envList) unset(key string) {
	if i := e.index(key); i >= 0 {
		*e = append((*e)[:i], (*e)[i+1:]...)
	}
}

// ChildEnv builds the environment of a spawned phase from base, usually
// os.Environ().
func (s Settings) ChildEnv(base []string, optProfile string) []string {
	env := envList(append([]string(nil), base...))

	if s.Real {
		env.set("NYTRIX_TEST_CACHE", "0")
		env.set("NYTRIX_TEST_NO_NATIVE_CACHE", "1")
		env.set("NYTRIX_JIT_CACHE", "0")
		env.set("NYTRIX_AOT_CACHE", "0")
		env.set("NYTRIX_STD_CACHE", "0")
	}
	if optProfile != "" {
		env.set("NYTRIX_OPT_PROFILE", optProfile)
	}
	if s.TestMode {
		env.set("NYTRIX_TEST_MODE", "1")
	} else {
		env.set("NYTRIX_TEST_MODE", "0")
	}
	if s.host.ARM32() && !s.host.Windows() {
		armHardFloat(&env)
	}

	if !s.PreservePreload {
		env.unset("LD_PRELOAD")
		env.unset("DYLD_INSERT_LIBRARIES")
	}
	if preload, ok := env.get("NY_TEST_PRELOAD"); ok {
		if preload = strings.TrimSpace(preload); preload != "" {
			env.set("LD_PRELOAD", preload)
		} else {
			env.unset("LD_PRELOAD")
		}
	}
	return env
}

// armHardFloat fills in hard-float defaults for 32-bit ARM Linux hosts
// unless the caller already chose an ABI.
func armHardFloat(env *envList) {
	env.setDefault("NYTRIX_ARM_FLOAT_ABI", "hard")

	cflags, _ := env.get("NYTRIX_HOST_CFLAGS")
	ldflags, _ := env.get("NYTRIX_HOST_LDFLAGS")
	appendFlag := func(flags, marker, add string) string {
		if strings.Contains(flags, marker) {
			return strings.TrimSpace(flags)
		}
		return strings.TrimSpace(flags + " " + add)
	}
	cflags = appendFlag(cflags, "-mfloat-abi=", "-mfloat-abi=hard")
	ldflags = appendFlag(ldflags, "-mfloat-abi=", "-mfloat-abi=hard")
	cflags = appendFlag(cflags, "-mfpu=", "-mfpu=vfpv3 -march=armv7-a")
	ldflags = appendFlag(ldflags, "-mfpu=", "-mfpu=vfpv3")
	env.set("NYTRIX_HOST_CFLAGS", cflags)
	env.set("NYTRIX_HOST_LDFLAGS", ldflags)

	env.setDefault("NYTRIX_HOST_TRIPLE", "armv7-unknown-linux-gnueabihf")
}

// Lookup reads key from a KEY=VALUE list.
func Lookup(env []string, key string) string {
	v, _ := envList(env).get(key)
	return v
}

// CompilerCaches reports the compiler-side cache toggles exported to
// children, for the mode banner.
func (s Settings) CompilerCaches() (jit, aot, std bool) {
	if s.Real {
		return false, false, false
	}
	return s.reader.Bool("NYTRIX_JIT_CACHE", true),
		s.reader.Bool("NYTRIX_AOT_CACHE", true),
		s.reader.Bool("NYTRIX_STD_CACHE", true)
}
