package clientcli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	qfs "eddisonso.com/go-qfs/pkg/go-qfs-sdk"
	"eddisonso.com/go-qfs/pkg/kfs"
)

const timeLayout = "2006-01-02 15:04:05"

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

func formatLayout(a qfs.Attr) string {
	if a.IsDir() {
		return "-"
	}
	if a.StriperType() == kfs.StriperRS {
		return fmt.Sprintf("rs %d+%d", a.Stripes(), a.RecoveryStripes())
	}
	return fmt.Sprintf("x%d", a.Replicas())
}

func renderAttrTable(w io.Writer, attrs []qfs.Attr) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODE\tLAYOUT\tSIZE\tMODIFIED\tNAME")
	for _, a := range attrs {
		name := a.Name()
		if a.IsDir() {
			name += "/"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			a.String()[:10],
			formatLayout(a),
			a.Size(),
			a.ModTime().Local().Format(timeLayout),
			name,
		)
	}
	tw.Flush()
}

func renderAttr(w io.Writer, a qfs.Attr) {
	kind := "file"
	if a.IsDir() {
		kind = "directory"
	}
	fmt.Fprintf(w, "Name:       %s\n", a.Name())
	fmt.Fprintf(w, "Type:       %s\n", kind)
	fmt.Fprintf(w, "ID:         %d\n", a.ID())
	fmt.Fprintf(w, "Mode:       %s (%04o)\n", a.String()[:10], a.NativeMode())
	fmt.Fprintf(w, "Owner:      %d:%d\n", a.UID(), a.GID())
	fmt.Fprintf(w, "Modified:   %s\n", a.ModTime().Local().Format(timeLayout))
	fmt.Fprintf(w, "Changed:    %s\n", a.Ctime().Local().Format(timeLayout))
	if a.IsDir() {
		fmt.Fprintf(w, "Files:      %d\n", a.Chunks())
		fmt.Fprintf(w, "Subdirs:    %d\n", a.Directories())
		return
	}
	fmt.Fprintf(w, "Size:       %d bytes (%s)\n", a.Size(), formatBytes(a.Size()))
	fmt.Fprintf(w, "Chunks:     %d\n", a.Chunks())
	fmt.Fprintf(w, "Layout:     %s\n", formatLayout(a))
	if a.StriperType() == kfs.StriperRS {
		fmt.Fprintf(w, "Stripe:     %d bytes\n", a.StripeSize())
	}
	fmt.Fprintf(w, "Tiers:      %d-%d\n", a.MinSTier(), a.MaxSTier())
}
