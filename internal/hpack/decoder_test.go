package hpack

import "testing"

func TestIndexedFieldStatus200(t *testing.T) {
	d := NewDecoder(4096)
	headers, err := d.DecodeFields([]byte{0x88})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(headers) != 1 || headers[0].Name != ":status" || headers[0].Value != "200" {
		t.Fatalf("got %+v, want :status=200", headers)
	}
}

func TestIndexOutOfRangeIsRejected(t *testing.T) {
	d := NewDecoder(4096)
	_, err := d.DecodeFields([]byte{0xff, 0x00})
	if err == nil {
		t.Fatal("expected an error for an out-of-range index")
	}
}

func TestLiteralWithIncrementalIndexingAddsToDynamicTable(t *testing.T) {
	d := NewDecoder(4096)
	// 0x40 = literal w/ incremental indexing, new name; name "x-test" (6
	// bytes, no huffman); value "v" (1 byte, no huffman).
	block := []byte{0x40, 0x06, 'x', '-', 't', 'e', 's', 't', 0x01, 'v'}
	headers, err := d.DecodeFields(block)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(headers) != 1 || headers[0].Name != "x-test" || headers[0].Value != "v" {
		t.Fatalf("got %+v", headers)
	}
	if d.table.Len() != 1 {
		t.Fatalf("expected dynamic table to gain one entry, got %d", d.table.Len())
	}

	// Now reference it back by index: static table has 61 entries, so the
	// newest dynamic entry is index 62.
	headers2, err := d.DecodeFields([]byte{0x80 | 62})
	if err != nil {
		t.Fatalf("unexpected error resolving dynamic index: %v", err)
	}
	if headers2[0].Name != "x-test" || headers2[0].Value != "v" {
		t.Fatalf("got %+v", headers2)
	}
}

func TestDynamicTableEvictsOldestWhenOverCapacity(t *testing.T) {
	table := NewDynamicTable(64) // room for ~1 small entry plus overhead
	table.Add("a", "1")          // size = 1+1+32 = 34
	table.Add("b", "2")          // size = 34 again, total 68 > 64, evicts "a"
	if table.Len() != 1 {
		t.Fatalf("expected eviction to leave exactly 1 entry, got %d", table.Len())
	}
	p, err := table.resolve(StaticTableSize + 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.name != "b" {
		t.Fatalf("expected surviving entry to be the most recently added, got %q", p.name)
	}
}

func TestDynamicTableSizeUpdateEvictsImmediately(t *testing.T) {
	table := NewDynamicTable(4096)
	table.Add("name", "value")
	if table.Len() != 1 {
		t.Fatalf("expected 1 entry before shrink")
	}
	table.SetMaxSize(8)
	if table.Len() != 0 {
		t.Fatalf("expected shrink below entry size to evict everything, got %d entries", table.Len())
	}
}

func TestDecodeIntegerMultiByteContinuation(t *testing.T) {
	// Value 1337 encoded with a 5-bit prefix per RFC 7541 section 5.1's
	// own worked example: 11111 10011010 00001010.
	block := []byte{0x1f, 0x9a, 0x0a}
	value, n, err := decodeInteger(block, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != 1337 {
		t.Fatalf("got %d, want 1337", value)
	}
	if n != 3 {
		t.Fatalf("got consumed=%d, want 3", n)
	}
}

func TestDecodeIntegerFitsInPrefix(t *testing.T) {
	value, n, err := decodeInteger([]byte{0x0a}, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != 10 || n != 1 {
		t.Fatalf("got value=%d n=%d, want 10,1", value, n)
	}
}

func TestDecodeIntegerTruncatedContinuation(t *testing.T) {
	_, _, err := decodeInteger([]byte{0x1f, 0x9a}, 5)
	if err != ErrTruncated {
		t.Fatalf("got %v, want ErrTruncated", err)
	}
}

func TestHuffmanDecodeRoundTripsASCII(t *testing.T) {
	// "www.example.com" Huffman-coded bytes from RFC 7541 section C.4.1.
	encoded := []byte{
		0xf1, 0xe3, 0xc2, 0xe5, 0xf2, 0x3a, 0x6b, 0xa0,
		0xab, 0x90, 0xf4, 0xff,
	}
	decoded, err := HuffmanDecode(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(decoded) != "www.example.com" {
		t.Fatalf("got %q, want www.example.com", decoded)
	}
}

func TestHuffmanDecodeRejectsBadPadding(t *testing.T) {
	// 0x00 decodes '0' (code 00000) and leaves three 0 bits behind; those
	// trailing bits are not a prefix of all 1s, so the string must fail.
	_, err := HuffmanDecode([]byte{0x00})
	if err == nil {
		t.Fatal("expected an error for invalid trailing bits")
	}
}
