// Package pools provides byte-slice pooling for the write path.
//
// WAL record assembly and the row codecs build many short-lived buffers;
// pooling them keeps a steady bulk load from churning the allocator:
//
//   - BytePool: size-class based byte slice pooling
//   - BufferBuilder: framed record construction on pooled buffers
package pools
