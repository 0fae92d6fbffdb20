package s3

import (
	"io"
)

// Uploader writes snapshot archive objects to a bucket.
type Uploader interface {
	Putter
	BufferPutter
}

type Putter interface {
	Put(key string, data []byte) (err error)
}

// BufferPutter can be used to put a file to S3 since File implements Read and Seek.
type BufferPutter interface {
	BufferPut(key string, buf io.ReadSeeker) (err error)
}
