package swift

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// -------------------------------------------------------------------------
// Destination descriptor — spec.md section 3 / section 6.3
// -------------------------------------------------------------------------

// descriptorSize is the on-wire size of one destination descriptor:
// 4-byte IPv4 address + 1-byte port + 3 bytes padding + 4-byte byte count.
const descriptorSize = 12

// addressHeaderSize is the on-wire size of the address record's count field.
const addressHeaderSize = 4

// Destination is one entry of an address record: an (address, port) pair
// plus a byte count that is output-only on receive and ignored on send
// (spec.md section 3).
type Destination struct {
	// Addr is the IPv4 destination (or, on recvmsg, source) address.
	Addr netip.Addr

	// Port is the destination (or source) port, [1, 255].
	Port uint8

	// Bytes is the number of bytes delivered into the paired buffer.
	// Ignored on send; set by recvmsg on return.
	Bytes uint32
}

// AddressRecord is a variable-length list of destination descriptors
// (spec.md section 3): used as a bind address (Count==1), a sendmsg
// target list (Count>=1), or a recvmsg out-address (Count set on
// return). Dests may have a larger capacity than Count; only the first
// Count entries are meaningful.
type AddressRecord struct {
	Dests []Destination
}

// Count reports the number of meaningful entries in the record.
func (r AddressRecord) Count() int {
	return len(r.Dests)
}

// DecodeAddressRecord parses buf as an address record (spec.md section
// 6.3): a 4-byte count followed by count fixed-size descriptors. Fails
// with ErrInvalidArgument if buf is shorter than the header plus
// count*descriptorSize bytes, matching the spec's "callers pass the
// total length; the core validates length >= header + count x
// sizeof(descriptor)".
func DecodeAddressRecord(buf []byte) (AddressRecord, error) {
	if len(buf) < addressHeaderSize {
		return AddressRecord{}, fmt.Errorf(
			"decode address record: %d bytes, need at least %d: %w",
			len(buf), addressHeaderSize, ErrInvalidArgument)
	}

	count := binary.BigEndian.Uint32(buf[:addressHeaderSize])

	needed := addressHeaderSize + int(count)*descriptorSize
	if len(buf) < needed {
		return AddressRecord{}, fmt.Errorf(
			"decode address record: count %d needs %d bytes, got %d: %w",
			count, needed, len(buf), ErrInvalidArgument)
	}

	rec := AddressRecord{Dests: make([]Destination, count)}

	for i := range int(count) {
		off := addressHeaderSize + i*descriptorSize

		var ipBytes [4]byte
		copy(ipBytes[:], buf[off:off+4])

		rec.Dests[i] = Destination{
			Addr:  netip.AddrFrom4(ipBytes),
			Port:  buf[off+4],
			Bytes: binary.BigEndian.Uint32(buf[off+8 : off+12]),
		}
	}

	return rec, nil
}

// EncodeAddressRecord serializes rec into the wire format described in
// spec.md section 6.3, writing Bytes from each destination (meaningful
// after recvmsg has filled it; zero on a record the caller is building
// for sendmsg).
func EncodeAddressRecord(rec AddressRecord) []byte {
	buf := make([]byte, addressHeaderSize+len(rec.Dests)*descriptorSize)

	binary.BigEndian.PutUint32(buf[:addressHeaderSize], uint32(len(rec.Dests)))

	for i, d := range rec.Dests {
		off := addressHeaderSize + i*descriptorSize

		addr4 := d.Addr.As4()
		copy(buf[off:off+4], addr4[:])
		buf[off+4] = d.Port
		// buf[off+5 : off+8] left as padding (zero).
		binary.BigEndian.PutUint32(buf[off+8:off+12], d.Bytes)
	}

	return buf
}
