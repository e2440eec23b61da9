package realm

// InvalidTargetError reports a host root object that cannot anchor a
// sandbox realm. It is returned synchronously, before any container is
// created.
type InvalidTargetError struct {
	Reason string
}

func (e *InvalidTargetError) Error() string {
	return "realm: invalid target: " + e.Reason
}
