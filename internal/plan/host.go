package plan

import (
	"bufio"
	"bytes"
	"context"
	"movefuzz/config"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// NewCompiler builds the compiler from the environment. HOST_TRIPLE skips
// asking rustc.
func NewCompiler(appConfig *config.AppConfig) *Compiler {
	host := appConfig.HostTriple
	if host == "" {
		host = DetectHostTriple(context.Background(), os.Getenv("RUSTC"))
	}
	return &Compiler{
		HostTriple: host,
		CargoPath:  appConfig.Cargo,
		LLVMPath:   appConfig.LLVMPath,
		Environ:    os.Environ(),
	}
}

// DetectHostTriple asks rustc for the host triple, falling back to a guess
// from the Go runtime when rustc is unavailable.
func DetectHostTriple(ctx context.Context, rustc string) string {
	if rustc == "" {
		rustc = "rustc"
	}
	out, err := exec.CommandContext(ctx, rustc, "-vV").Output()
	if err == nil {
		if triple := parseRustcHost(out); triple != "" {
			return triple
		}
	}
	return fallbackTriple(runtime.GOOS, runtime.GOARCH)
}

func parseRustcHost(out []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if host, ok := strings.CutPrefix(strings.TrimSpace(scanner.Text()), "host:"); ok {
			return strings.TrimSpace(host)
		}
	}
	return ""
}

func fallbackTriple(goos, goarch string) string {
	arch := map[string]string{
		"amd64":   "x86_64",
		"arm64":   "aarch64",
		"386":     "i686",
		"riscv64": "riscv64gc",
	}[goarch]
	if arch == "" {
		arch = goarch
	}
	switch goos {
	case "darwin":
		return arch + "-apple-darwin"
	case "windows":
		return arch + "-pc-windows-msvc"
	case "linux":
		return arch + "-unknown-linux-gnu"
	default:
		return arch + "-unknown-" + goos
	}
}
