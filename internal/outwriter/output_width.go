package outwriter

import (
	"os"

	"golang.org/x/term"
)

// terminalWidth is swapped out in tests.
var terminalWidth = func() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80 // Conservative default for narrow terminals and CI
	}
	return width
}

// getMaxMessageWidth returns how many runes of an error message fit in the
// update summary table next to its fixed columns.
func getMaxMessageWidth() int {
	// Repo + Status + Kind + Days + Labels + Duration with borders/padding
	available := terminalWidth() - 75
	if available < 20 {
		return 20
	}
	if available > 120 {
		return 120
	}
	return available
}
