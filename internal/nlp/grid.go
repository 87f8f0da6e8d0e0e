// internal/nlp/grid.go
package nlp

import (
	"strings"

	"github.com/Corphon/OverwatchVoice/internal/models"
)

// The battlefield is a 10x10 grid of 10-unit cells centred on the origin,
// so A1 sits at (-45,-45) and J10 at (45,45).
const (
	GridSize   = 10
	CellSize   = 10.0
	GridOffset = 4.5
)

// GridToWorld converts a column letter (a–j) and row number (1–10) into
// world coordinates. ok is false when either part is out of range.
func GridToWorld(letter string, number int) (models.GridCoord, bool) {
	letter = strings.ToLower(letter)
	if len(letter) != 1 || letter[0] < 'a' || letter[0] >= 'a'+GridSize {
		return models.GridCoord{}, false
	}
	if number < 1 || number > GridSize {
		return models.GridCoord{}, false
	}

	col := float64(letter[0] - 'a')
	row := float64(number - 1)

	return models.GridCoord{
		X:      (col - GridOffset) * CellSize,
		Z:      (row - GridOffset) * CellSize,
		Letter: strings.ToUpper(letter),
		Number: number,
	}, true
}
