package colors

// init probes the terminal once so that Colorize knows whether ANSI escape codes can be used.
func init() {
	EnableColor()
}
