package transformer

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Request is one run as asked for by the host.
type Request struct {
	Files         []string // files and folders to search for logger files
	Timestamp     string   // optional; its first 10 characters name the outputs
	WorkingFolder string
	OverrideDate  string // yyyy-MM-dd, wins over everything else
	BatchSize     int
}

// HostMetadata is the request metadata file written by the host, JSON or YAML.
type HostMetadata struct {
	Timestamp     string   `yaml:"timestamp"`
	WorkingFolder string   `yaml:"working_folder"`
	ListFiles     []string `yaml:"list_files"`
}

// ReadHostMetadata decodes a metadata file. JSON is read as YAML.
func ReadHostMetadata(path string) (HostMetadata, error) {
	var md HostMetadata
	data, err := os.ReadFile(path)
	if err != nil {
		return md, err
	}
	if err := yaml.Unmarshal(data, &md); err != nil {
		return md, fmt.Errorf("decode %s: %w", path, err)
	}
	return md, nil
}

// Request merges the metadata with the files named on the command line.
func (md HostMetadata) Request(files []string) Request {
	all := make([]string, 0, len(md.ListFiles)+len(files))
	all = append(all, md.ListFiles...)
	all = append(all, files...)
	return Request{
		Files:         all,
		Timestamp:     md.Timestamp,
		WorkingFolder: md.WorkingFolder,
	}
}
