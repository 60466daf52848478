package frame

import "io"

// maxIOVec bounds how many buffers are handed to a single writeBatch call;
// most platforms cap a real writev around 1024 (IOV_MAX).
const maxIOVec = 1024

// WriteAllVectored writes every non-empty slice in bufs to w, resuming
// correctly after a partial write: it advances across fully consumed
// slices and preserves a byte offset into the first partially-consumed
// slice, never re-sending already-transmitted bytes.
func WriteAllVectored(w io.Writer, bufs [][]byte) error {
	// Drop empty slices up front; they carry no bytes to resume into and
	// only add bookkeeping overhead to the loop below.
	nonEmpty := make([][]byte, 0, len(bufs))
	for _, b := range bufs {
		if len(b) > 0 {
			nonEmpty = append(nonEmpty, b)
		}
	}
	if len(nonEmpty) == 0 {
		return nil
	}

	for start := 0; start < len(nonEmpty); start += maxIOVec {
		end := start + maxIOVec
		if end > len(nonEmpty) {
			end = len(nonEmpty)
		}
		if err := writeBatch(w, nonEmpty[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// writeBatch writes every slice in bufs to w in order, tracking a byte
// offset into the slice currently in flight. net.Buffers.WriteTo only
// resumes a short write correctly on its unexported writev fast path (real
// *net.TCPConn/*net.UnixConn sockets); its generic fallback calls Write
// once per slice and advances to the next one regardless of whether the
// slice was fully consumed, silently dropping bytes on a true partial
// write. Looping here ourselves resumes the remainder of a
// partially-written slice before moving on, for every io.Writer alike.
func writeBatch(w io.Writer, bufs [][]byte) error {
	for _, buf := range bufs {
		off := 0
		for off < len(buf) {
			n, err := w.Write(buf[off:])
			if err != nil {
				return err
			}
			if n == 0 {
				return io.ErrShortWrite
			}
			off += n
		}
	}
	return nil
}
