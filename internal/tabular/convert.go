package tabular

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaramelBytes/soilfusion-cli/internal/utils"
	"go.uber.org/zap"
)

// ConversionWarning describes an upload that could not be transcoded. It is
// logged and skipped; it never aborts a run.
type ConversionWarning struct {
	File string
	Err  error
}

func (w ConversionWarning) String() string {
	return fmt.Sprintf("convert %s: %v", w.File, w.Err)
}

// ConvertDir transcodes every .xlsx/.xls/.json file in dir into a sibling
// .csv with the same stem and removes the original. It returns the CSV paths
// written and the warnings for files that were skipped.
func ConvertDir(dir string, log *zap.SugaredLogger) ([]string, []ConversionWarning) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		w := ConversionWarning{File: dir, Err: err}
		log.Warnw("conversion pre-pass skipped", "dir", dir, "error", err)
		return nil, []ConversionWarning{w}
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var written []string
	var warnings []ConversionWarning
	for _, name := range names {
		ext := strings.ToLower(filepath.Ext(name))
		src := filepath.Join(dir, name)
		var (
			t    *Table
			rerr error
		)
		switch ext {
		case ".xlsx":
			log.Infow("converting spreadsheet to csv", "file", name)
			t, rerr = ReadXLSX(src)
		case ".xls":
			rerr = fmt.Errorf("legacy binary .xls workbooks are not supported; re-save as .xlsx")
		case ".json":
			log.Infow("converting json to csv", "file", name)
			t, rerr = ReadJSON(src)
		default:
			continue
		}
		if rerr != nil {
			w := ConversionWarning{File: name, Err: rerr}
			log.Warnw("conversion failed", "file", name, "error", rerr)
			warnings = append(warnings, w)
			continue
		}
		dst := filepath.Join(dir, utils.StemOf(name)+".csv")
		if err := WriteCSV(dst, t); err != nil {
			w := ConversionWarning{File: name, Err: err}
			log.Warnw("conversion failed", "file", name, "error", err)
			warnings = append(warnings, w)
			continue
		}
		if err := os.Remove(src); err != nil {
			log.Warnw("converted but could not remove original", "file", name, "error", err)
		}
		written = append(written, dst)
	}
	return written, warnings
}
