// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package partition decodes an MBR-style partition table, including
// logical partitions nested inside an extended partition, the way a block
// device driver calls into the VFS layer before any filesystem is mounted
// on it. Ported from the original kernel's KVFSManager::DecodeDiskPartitions,
// almost record-for-record: the same signature check, the same overlap and
// multiple-active/multiple-extended validation, and the same MAX_PARTITIONS
// sanity cap against a circular extended-partition chain.
package partition

import (
	"encoding/binary"

	"github.com/kavionic/padkernel/kerrors"
)

// MaxPartitions bounds how many entries Decode ever returns, guarding
// against a corrupt or adversarial extended-partition chain that loops back
// on itself.
const MaxPartitions = 64

const (
	recordTableOffset = 0x1be
	recordSize        = 16
	signatureOffset   = 0x1fe
	signature         = 0xaa55
)

const (
	typeExtendedCHS  = 0x05
	typeExtendedLBA  = 0x0f
	typeExtendedLinx = 0x85
)

func isExtendedType(t byte) bool {
	return t == typeExtendedCHS || t == typeExtendedLBA || t == typeExtendedLinx
}

// Geometry describes the disk a partition table is being decoded from.
type Geometry struct {
	SectorCount    uint64
	BytesPerSector uint32
}

// Desc is one decoded partition entry. Entries appear in table order with
// empty records skipped: the primary table's partitions first, then the
// logical partitions of each chained extended table. The primary table's
// extended entry reserves a zero-Type placeholder slot at its position, so
// callers must skip entries with Type == 0 rather than assume a dense array.
type Desc struct {
	Type   byte
	Status byte
	Start  uint64 // byte offset from the start of the disk
	Size   uint64 // bytes
}

// ReadFunc reads len(buf) bytes from the device starting at byte offset
// pos, the callback the original kernel's disk_read_op plays.
type ReadFunc func(pos int64, buf []byte) (int, error)

type record struct {
	status   byte
	typ      byte
	startLBA uint32
	size     uint32
}

func parseRecord(b []byte) record {
	return record{
		status:   b[0],
		typ:      b[4],
		startLBA: binary.LittleEndian.Uint32(b[8:12]),
		size:     binary.LittleEndian.Uint32(b[12:16]),
	}
}

// Decode walks the partition table on a device described by geom, reading
// sectors through read, and returns every primary and logical partition
// found. It returns kerrors.InvalidPartitionTable for a bad signature,
// more than one extended partition entry in a single table, an overlapping
// partition, more than one active partition, or a partition extending past
// the end of the disk/extended partition.
func Decode(geom Geometry, read ReadFunc) ([]Desc, error) {
	diskSize := geom.SectorCount * uint64(geom.BytesPerSector)

	var partitions []Desc
	var tablePos int64
	var firstExtended uint64
	var extendedEnd uint64

	for len(partitions) < MaxPartitions {
		buf := make([]byte, 512)
		n, err := read(tablePos, buf)
		if err != nil || n != len(buf) {
			return nil, kerrors.Wrap(kerrors.IoError, err)
		}
		if binary.LittleEndian.Uint16(buf[signatureOffset:]) != signature {
			return nil, kerrors.New(kerrors.InvalidPartitionTable, "invalid partition table signature")
		}

		records := make([]record, 4)
		numActive, numExtended := 0, 0
		for i := 0; i < 4; i++ {
			records[i] = parseRecord(buf[recordTableOffset+i*recordSize:])
			if records[i].status&0x80 != 0 {
				numActive++
			}
			if isExtendedType(records[i].typ) {
				numExtended++
			}
		}
		if numExtended > 1 {
			return nil, kerrors.New(kerrors.InvalidPartitionTable, "more than one extended partition in table")
		}

		var extStart uint64
		for i := 0; i < 4 && len(partitions) < MaxPartitions; i++ {
			rec := records[i]
			if rec.typ == 0 {
				continue
			}
			if isExtendedType(rec.typ) {
				extStart = uint64(rec.startLBA) * uint64(geom.BytesPerSector)
				if firstExtended == 0 {
					partitions = append(partitions, Desc{})
					extendedEnd = extStart + uint64(rec.size)*uint64(geom.BytesPerSector)
				}
				continue
			}

			desc := Desc{
				Type:   rec.typ,
				Status: rec.status,
				Start:  uint64(rec.startLBA)*uint64(geom.BytesPerSector) + uint64(tablePos),
				Size:   uint64(rec.size) * uint64(geom.BytesPerSector),
			}
			limit := diskSize
			if firstExtended != 0 {
				limit = extendedEnd
			}
			if desc.Start+desc.Size > limit {
				return nil, kerrors.New(kerrors.InvalidPartitionTable, "partition %d extends outside the disk or its extended partition", len(partitions))
			}

			for j, cur := range partitions {
				if cur.Start+cur.Size > desc.Start && cur.Start < desc.Start+desc.Size {
					return nil, kerrors.New(kerrors.InvalidPartitionTable, "partition %d overlaps partition %d", len(partitions), j)
				}
				if desc.Status&0x80 != 0 && cur.Status&0x80 != 0 {
					return nil, kerrors.New(kerrors.InvalidPartitionTable, "more than one active partition")
				}
			}
			partitions = append(partitions, desc)
		}

		if extStart == 0 {
			break
		}
		tablePos = int64(firstExtended + extStart)
		if firstExtended == 0 {
			firstExtended = extStart
		}
	}
	return partitions, nil
}
