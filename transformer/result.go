package transformer

import (
	"strconv"
	"strings"
	"time"
)

const (
	Name    = "terra.environmental.envlog2netcdf"
	Version = "2.0"

	SensorKey = "envlog_netcdf"
	CSVKey    = "csv"

	CodeSuccess        = 0
	CodeNoInputFiles   = -1000
	CodeDateResolution = -1001
)

type FileDescriptor struct {
	Path string `json:"path"`
	Key  string `json:"key"`
}

// Metadata is reported under the transformer name. Counts are text, as the host expects.
type Metadata struct {
	Version              string `json:"version"`
	UTCTimestamp         string `json:"utc_timestamp"`
	ProcessingTime       string `json:"processing_time"`
	NumFilesDirsReceived string `json:"num_files_dirs_received"`
	NumEnvironmentFiles  string `json:"num_environment_files"`
	SourceFiles          string `json:"source_files"`
	NumCSVRows           string `json:"num_csv_rows"`
	NumStreamsSkipped    string `json:"num_streams_skipped"`
}

// Result is the document handed back to the host.
type Result struct {
	Code     int              `json:"code"`
	Files    []FileDescriptor `json:"file,omitempty"`
	Error    string           `json:"error,omitempty"`
	Metadata *Metadata        `json:"terra.environmental.envlog2netcdf,omitempty"`
}

func (r Result) Succeeded() bool { return r.Code == CodeSuccess }

func newErrorResult(code int, err error) Result {
	return Result{Code: code, Error: err.Error()}
}

type runSummary struct {
	ncPath, csvPath string
	files           []string
	rows, skipped   int
	finished        time.Time
	elapsed         time.Duration
}

func newSuccessResult(s runSummary) Result {
	return Result{
		Code: CodeSuccess,
		Files: []FileDescriptor{
			{Path: s.ncPath, Key: SensorKey},
			{Path: s.csvPath, Key: CSVKey},
		},
		Metadata: &Metadata{
			Version:              Version,
			UTCTimestamp:         s.finished.UTC().Format(time.RFC3339Nano),
			ProcessingTime:       s.elapsed.String(),
			NumFilesDirsReceived: "0", // never incremented; kept for hosts that read it
			NumEnvironmentFiles:  strconv.Itoa(len(s.files)),
			SourceFiles:          sourceFiles(s.files),
			NumCSVRows:           strconv.Itoa(s.rows),
			NumStreamsSkipped:    strconv.Itoa(s.skipped),
		},
	}
}

// sourceFiles renders 'a', 'b'.
func sourceFiles(files []string) string {
	quoted := make([]string, len(files))
	for i, f := range files {
		quoted[i] = "'" + f + "'"
	}
	return strings.Join(quoted, ", ")
}
