package secondary

// Stager owns the coordinator-local copies of submitted files
type Stager interface {
	// Stage writes contents under a location unique to this submission and
	// returns the staged source path
	Stage(filename string, contents []byte) (string, error)

	// ReadArtifact reads back a compiled artifact
	ReadArtifact(path string) ([]byte, error)

	// Cleanup removes a staged source and everything staged beside it
	Cleanup(sourcePath string)
}
