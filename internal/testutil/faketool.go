// Package testutil lets a test binary stand in for the external tools.
//
// A package opts in by calling Main from TestMain. InstallTools then links the
// test binary into a temp dir under tool names; when a child starts under one
// of those names it runs the matching fake instead of the tests.
package testutil

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

const envKey = "DOVETAIL_FAKE_TOOL"

// Main runs m, or a fake tool when the binary was re-executed by a test.
func Main(m *testing.M) {
	if os.Getenv(envKey) == "1" {
		os.Exit(runTool(filepath.Base(os.Args[0]), os.Args[1:]))
	}
	os.Setenv(envKey, "1")
	os.Exit(m.Run())
}

// InstallTools symlinks the running test binary into a temp dir once per name
// and returns the dir.
func InstallTools(t testing.TB, names ...string) string {
	t.Helper()
	self, err := os.Executable()
	if err != nil {
		t.Fatalf("locating test binary: %v", err)
	}
	dir := t.TempDir()
	for _, name := range names {
		if err := os.Symlink(self, filepath.Join(dir, name)); err != nil {
			t.Fatalf("installing fake %s: %v", name, err)
		}
	}
	return dir
}

// Pattern returns the deterministic byte sequence the emit tool writes.
func Pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

// Fake tools:
//
//	emit N [code]        write Pattern(N) to stdout, exit code
//	stream               write 4 KiB chunks forever
//	passthrough OUT      copy stdin to OUT, report byte count at EOF
//	fail CODE [MSG...]   print a few stderr lines and exit CODE
//	sleep SECONDS        sleep
//	chatter N            print N stderr lines, exit 0
//	ffmpeg, dovi_tool, mkvmerge: see the fake* functions
func runTool(name string, args []string) int {
	switch name {
	case "emit":
		n, _ := strconv.Atoi(arg(args, 0))
		code, _ := strconv.Atoi(arg(args, 1))
		w := bufio.NewWriter(os.Stdout)
		w.Write(Pattern(n))
		w.Flush()
		fmt.Fprintf(os.Stderr, "emitted %d bytes\n", n)
		return code
	case "stream":
		chunk := Pattern(4096)
		for {
			if _, err := os.Stdout.Write(chunk); err != nil {
				return 1
			}
			time.Sleep(5 * time.Millisecond)
		}
	case "passthrough":
		return passthrough(arg(args, 0))
	case "fail":
		code, _ := strconv.Atoi(arg(args, 0))
		msg := strings.Join(args[min(1, len(args)):], " ")
		if msg == "" {
			msg = "failure"
		}
		fmt.Fprintln(os.Stderr, "starting")
		fmt.Fprintln(os.Stderr, msg)
		return code
	case "sleep":
		secs, _ := strconv.ParseFloat(arg(args, 0), 64)
		time.Sleep(time.Duration(secs * float64(time.Second)))
		return 0
	case "chatter":
		n, _ := strconv.Atoi(arg(args, 0))
		for i := 1; i <= n; i++ {
			fmt.Fprintf(os.Stderr, "line %d\n", i)
		}
		return 0
	case "ffmpeg":
		return fakeFFmpeg(args)
	case "dovi_tool":
		return fakeDoviTool(args)
	case "mkvmerge":
		return fakeMkvmerge(args)
	}
	fmt.Fprintf(os.Stderr, "unknown fake tool %q\n", name)
	return 127
}

func passthrough(out string) int {
	f, err := os.Create(out)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer f.Close()
	n, err := io.Copy(f, os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Fprintf(os.Stderr, "eof after %d bytes\n", n)
	return 0
}

// fakeFFmpeg copies the -i input to stdout when the last argument is "-",
// otherwise to the last argument, emitting progress lines on stderr.
// A source whose name contains "corrupt" fails with exit code 1.
func fakeFFmpeg(args []string) int {
	src := valueAfter(args, "-i")
	if strings.Contains(filepath.Base(src), "corrupt") {
		fmt.Fprintf(os.Stderr, "%s: Invalid data found when processing input\n", src)
		return 1
	}
	data, err := os.ReadFile(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	out := args[len(args)-1]
	if out == "-" {
		os.Stdout.Write(data)
		return 0
	}
	for i := 1; i <= 3; i++ {
		fmt.Fprintf(os.Stderr, "frame=%d fps=24 q=28.0 size=%dkB time=00:00:%02d.00 bitrate=1.0kbits/s speed=1x\r", i*24, i, i)
	}
	fmt.Fprintln(os.Stderr)
	if err := os.WriteFile(out, append([]byte("REENCODED:"), data...), 0644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// fakeDoviTool tags stdin with the subcommand and writes it to -o.
func fakeDoviTool(args []string) int {
	var sub string
	for _, a := range args {
		if a == "convert" || a == "remove" {
			sub = a
			break
		}
	}
	if sub == "" {
		fmt.Fprintln(os.Stderr, "missing subcommand")
		return 2
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Fprintf(os.Stderr, "%s: read %d bytes\n", sub, len(data))
	payload := append([]byte(strings.ToUpper(sub)+":"), data...)
	if err := os.WriteFile(valueAfter(args, "-o"), payload, 0644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// fakeMkvmerge writes "MUXED:" plus the first input to -o.
func fakeMkvmerge(args []string) int {
	out := valueAfter(args, "-o")
	var video string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-o", "-D":
			i++
			continue
		case "-q":
			continue
		}
		video = args[i]
		break
	}
	data, err := os.ReadFile(video)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	var buf bytes.Buffer
	buf.WriteString("MUXED:")
	buf.Write(data)
	if err := os.WriteFile(out, buf.Bytes(), 0644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	return 0
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func valueAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}
