package ivfshard

// Close releases resources held by this Index.
//
// The in-memory index holds no external resources today; Close exists so
// that persistence-backed loads (mmap'd blobs, open cache handles) can
// release them without changing the call site once wired.
func (idx *Index) Close() error {
	return nil
}
