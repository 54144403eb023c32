package display

import (
	"fmt"
	"io"

	"github.com/backmassage/imgopt/internal/term"
)

const banner = ` _                            _
(_)_ __ ___   __ _  ___  _ __ | |_
| | '_ ` + "`" + ` _ \ / _` + "`" + ` |/ _ \| '_ \| __|
| | | | | | | (_| | (_) | |_) | |_
|_|_| |_| |_|\__, |\___/| .__/ \__|
             |___/      |_|
`

// PrintBanner writes the ASCII art banner to w, in magenta when colors are on.
func PrintBanner(w io.Writer) {
	fmt.Fprint(w, term.Magenta(banner))
}
