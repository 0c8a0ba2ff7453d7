package audio

import (
	"fmt"
	"io"
)

// WriteDevices prints a device listing. Listing is diagnostic only, so an
// enumeration error is reported as an empty listing.
func WriteDevices(w io.Writer, devices []Device, err error) {
	if err != nil || len(devices) == 0 {
		fmt.Fprintln(w, "No input devices found.")
		return
	}

	fmt.Fprintln(w, "Input devices:")
	for _, d := range devices {
		marker := " "
		if d.Default {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s: %s", marker, d.ID, d.Name)
		if d.HostAPI != "" {
			fmt.Fprintf(w, " [%s]", d.HostAPI)
		}
		fmt.Fprintf(w, " (%dch)\n", d.Channels)
	}
}
