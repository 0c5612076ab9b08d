package codec

import "errors"

// ErrMalformed marks bytes that fail to decompress or deserialize
// into the expected shape. Callers at the storage-backend layer wrap
// this into a CorruptRecord error that carries file/offset context.
var ErrMalformed = errors.New("codec: malformed data")
