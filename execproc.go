package digo

import (
	"bytes"
	"os"
	"os/exec"

	"golang.org/x/text/encoding/unicode"
	"shanhu.io/misc/osutil"
)

// ExecArgs builds the argument vector for one file's command invocation.
// fn receives the file about to be run over and returns the bin plus its
// arguments; returning an empty bin skips the file.
type ExecArgs func(f *File) (bin string, args []string)

// execJob holds one resolved invocation, grounded on the teacher's
// cmds.go execJob: a working directory, a binary, its arguments, and
// where stdout goes. The teacher always runs against a fixed dir (either
// a source checkout or a container root); here dir is resolved per file
// since a pipeline's files can come from different bases.
type execJob struct {
	dir    string
	bin    string
	args   []string
	stdin  []byte
	stdout *bytes.Buffer
}

func (j *execJob) command() *exec.Cmd {
	cmd := exec.Command(j.bin, j.args...)
	cmd.Dir = j.dir
	cmd.Stdout = j.stdout
	cmd.Stderr = os.Stderr
	if j.stdin != nil {
		cmd.Stdin = bytes.NewReader(j.stdin)
	}
	osutil.CmdCopyEnv(cmd, "HOME")
	osutil.CmdCopyEnv(cmd, "PATH")
	osutil.CmdCopyEnv(cmd, "SSH_AUTH_SOCK")
	return cmd
}

// ExecOptions configures ExecProcessor (SPEC_FULL.md's "Exec processor").
type ExecOptions struct {
	// Dir resolves the working directory for the command, defaulting to
	// the file's base directory.
	Dir StringOpt

	// Stdin feeds the file's rendered content to the command's stdin
	// when set.
	Stdin bool

	// CaptureOutput replaces the file's content with the command's
	// stdout when set; otherwise the file passes through unchanged and
	// the command's stdout goes to the calling process's stdout.
	CaptureOutput bool
}

// ExecProcessor builds the processor .Pipe(ExecProcessor(...), nil)
// installs: runs an external command over each file, in the gulp-exec/
// gulp-run tradition of shelling a linter or formatter out per file.
// Grounded on the teacher's cmds.go runCmd/runCmdOutput pair — Stdin/
// CaptureOutput select between the two shapes it offers (discard stdout
// vs. capture it) instead of branching on two separate functions.
func ExecProcessor(args ExecArgs, opts ExecOptions) *Processor {
	return &Processor{
		Name: "exec",
		Load: opts.Stdin,
		Add: AddAsync(func(f *File, _ interface{}, _, _ *FileList, done func(bool)) {
			bin, cmdArgs := args(f)
			if bin == "" {
				done(true)
				return
			}

			dir := opts.Dir.Resolve(f)
			if dir == "" {
				dir = f.Base()
			}

			job := &execJob{dir: dir, bin: bin, args: cmdArgs}
			if opts.Stdin {
				job.stdin = f.Buffer()
			}
			if opts.CaptureOutput {
				job.stdout = &bytes.Buffer{}
			} else {
				job.stdout = nil
			}

			cmd := job.command()
			if job.stdout == nil {
				cmd.Stdout = os.Stdout
			}

			go func() {
				err := cmd.Run()
				if err != nil {
					f.Error("exec %s %v: %v", bin, cmdArgs, err)
					done(true)
					return
				}
				if opts.CaptureOutput {
					f.SetBuffer(decodeSubprocessOutput(job.stdout.Bytes()))
				}
				done(true)
			}()
		}),
	}
}

// decodeSubprocessOutput applies the UTF-16LE sniff spec.md 4.4 reserves
// for subprocess output (many Windows-targeting tools emit UTF-16LE on
// stdout with no BOM): any zero byte at an odd offset implies UTF-16LE,
// in which case the bytes are normalized to UTF-8 before being stored as
// the file's buffer. A general file's buffer is never guessed at this
// way — only what actually came out of a child process.
func decodeSubprocessOutput(out []byte) []byte {
	if !looksUTF16LE(out) {
		return out
	}
	d := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	decoded, err := d.Bytes(out)
	if err != nil {
		return out
	}
	return decoded
}

func looksUTF16LE(data []byte) bool {
	for i := 1; i < len(data); i += 2 {
		if data[i] == 0 {
			return true
		}
	}
	return false
}
