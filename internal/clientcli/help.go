package clientcli

import (
	"fmt"
	"io"
)

func printHelp(w io.Writer) {
	fmt.Fprintln(w, `Commands:
  ls [path]                   List a directory
  cat <path>                  Print a file
  get <remote> <local>        Copy a file to local disk
  put <local> <remote>        Copy a local file to qfs
  write <path> <data>         Replace a file's contents with data
  rm [-f] <path>              Delete a file, -f ignores missing files
  mkdir [-p] <path>           Create a directory, -p creates parents
  rmdir [-r] <path>           Remove a directory, -r removes its contents
  mv <src> <dst>              Rename or move
  chmod [-R] <mode> <path>    Change permission bits (octal)
  stat <path>                 Show attributes
  cd [path]                   Change the working directory
  pwd                         Print the working directory
  help                        Show this help
  exit                        Quit the shell`)
}
