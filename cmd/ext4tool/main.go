// Command ext4tool is a read/modify tool and consistency checker for a
// single ext4 image file.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/nikifkon/ext4-tools/ext4"
)

const usage = `ext4tool - ext4 image inspector, editor and consistency checker

Usage:
  ext4tool <image> stat <path>
  ext4tool <image> cat <path>
  ext4tool <image> ls [-r] [path]
  ext4tool <image> path_to_inode <path>
  ext4tool <image> dump <path> <dest>
  ext4tool <image> mv <src> <dst>
  ext4tool <image> rename <src> <dst>
  ext4tool <image> rm <path>
  ext4tool <image> fsck

Flags:
  -debug    print a full trace on error instead of a one-line message
`

var writeVerbs = map[string]bool{"mv": true, "rename": true, "rm": true}

func main() {
	args, debugMode := splitDebugFlag(os.Args[1:])
	if len(args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	if debugMode {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetReportCaller(true)
	}

	debugEnabled = debugMode
	imagePath, verb, verbArgs := args[0], args[1], args[2:]

	if err := run(logger, imagePath, verb, verbArgs); err != nil {
		reportError(logger, err, debugMode)
		os.Exit(1)
	}
}

func splitDebugFlag(args []string) ([]string, bool) {
	out := make([]string, 0, len(args))
	debug := false
	for _, a := range args {
		if a == "-debug" {
			debug = true
			continue
		}
		out = append(out, a)
	}
	return out, debug
}

func run(logger *logrus.Logger, imagePath, verb string, verbArgs []string) error {
	sess, err := ext4.Open(imagePath, writeVerbs[verb])
	if err != nil {
		return err
	}
	defer sess.Close()

	switch verb {
	case "stat":
		return requireArgs(verbArgs, 1, "stat <path>", func() error {
			return runStat(sess, verbArgs[0])
		})
	case "cat":
		return requireArgs(verbArgs, 1, "cat <path>", func() error {
			return runCat(sess, verbArgs[0])
		})
	case "ls":
		return runLs(sess, verbArgs)
	case "path_to_inode":
		return requireArgs(verbArgs, 1, "path_to_inode <path>", func() error {
			n, err := sess.Resolve(verbArgs[0])
			if err != nil {
				return err
			}
			fmt.Println(n)
			return nil
		})
	case "dump":
		return requireArgs(verbArgs, 2, "dump <path> <dest>", func() error {
			return runDump(sess, verbArgs[0], verbArgs[1])
		})
	case "mv", "rename":
		return requireArgs(verbArgs, 2, "mv <src> <dst>", func() error {
			return sess.Mv(verbArgs[0], verbArgs[1])
		})
	case "rm":
		return requireArgs(verbArgs, 1, "rm <path>", func() error {
			return sess.Rm(verbArgs[0])
		})
	case "fsck":
		return runFsck(sess, logger)
	default:
		return fmt.Errorf("unknown verb %q", verb)
	}
}

func requireArgs(args []string, n int, usage string, fn func() error) error {
	if len(args) < n {
		return fmt.Errorf("usage: %s", usage)
	}
	return fn()
}

func runDump(sess *ext4.Session, srcPath, destPath string) error {
	n, err := sess.Resolve(srcPath)
	if err != nil {
		return err
	}
	stream, err := sess.Stream(n)
	if err != nil {
		return err
	}
	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	buf := make([]byte, 64*1024)
	for {
		n, rerr := stream.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return nil
			}
			return rerr
		}
	}
}

func runFsck(sess *ext4.Session, logger *logrus.Logger) error {
	exitCode := 0
	err := sess.Fsck(logger, func(f ext4.Finding) bool {
		fmt.Println(formatFinding(f))
		exitCode = 1
		return true
	})
	if err != nil {
		return err
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
	return nil
}

func reportError(logger *logrus.Logger, err error, debugMode bool) {
	if debugMode {
		logger.Debugf("%s: %v\n%s", kindOf(err), err, debug.Stack())
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %s.\n", kindOf(err), err)
}

func kindOf(err error) string {
	switch err.(type) {
	case *ext4.OpenError:
		return "OpenError"
	case *ext4.NotFoundError:
		return "NotFound"
	case *ext4.NotADirectoryError:
		return "NotADirectory"
	case *ext4.InvalidInodeError:
		return "InvalidInode"
	case *ext4.NameTooLongError:
		return "NameTooLong"
	case *ext4.NotEnoughSpaceError:
		return "NotEnoughSpace"
	case *ext4.ReadOnlyError:
		return "ReadOnly"
	case *ext4.UnsupportedFeatureError:
		return "UnsupportedFeature"
	default:
		return "Error"
	}
}
