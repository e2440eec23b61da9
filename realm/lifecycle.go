package realm

// finalizeLifecycle decides the container's terminal state, exactly once
// per setup call.
//
// Detach (default) removes the container node from the host tree; the
// membrane stays valid through its direct references to the sandbox realm,
// but no container-driven script execution can occur afterwards.
//
// Preserve keeps the container attached and cycles its content document
// through an open/close sequence. Some hosting engines silently drop a
// container's document reference once configuration finishes; cycling
// forces them to retain it.
func finalizeLifecycle(ref *hostRealmReference, frame *sandboxFrame, keepAlive bool) error {
	if keepAlive {
		content := frame.container.Content()
		content.Open()
		content.Close()
		return nil
	}
	return ref.doc.RemoveContainer(frame.container)
}
