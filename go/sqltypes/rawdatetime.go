/*
Copyright 2021 Siodb GmbH.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package sqltypes

import (
	"encoding/binary"
	"fmt"
	"time"
)

// RawDateTime is the packed representation used by temporal columns.
// The date part is a 4-byte little-endian word:
//
//	bit  0      has-time-part flag
//	bits 1-3    day of week (Sunday = 0)
//	bits 4-8    day of month, minus one
//	bits 9-12   month, minus one
//	bits 13-31  year
//
// When the has-time-part flag is set, a 6-byte little-endian time word
// follows:
//
//	bit  0      reserved
//	bits 1-30   nanoseconds
//	bits 31-36  seconds
//	bits 37-42  minutes
//	bits 43-47  hours
const (
	rawDateSize     = 4
	rawDateTimeSize = rawDateSize + 6
)

// DecodeRawDateTime decodes a packed date-time from the front of data.
// It returns the decoded instant in UTC and the number of bytes
// consumed, which is rawDateSize for date-only values and
// rawDateTimeSize when a time part is present.
func DecodeRawDateTime(data []byte) (time.Time, int, error) {
	if len(data) < rawDateSize {
		return time.Time{}, 0, fmt.Errorf("raw date-time: %d bytes, need at least %d", len(data), rawDateSize)
	}
	date := binary.LittleEndian.Uint32(data)
	var (
		year  = int(date >> 13)
		month = time.Month(date>>9&0xf) + 1
		day   = int(date>>4&0x1f) + 1
	)
	if date&1 == 0 {
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), rawDateSize, nil
	}
	if len(data) < rawDateTimeSize {
		return time.Time{}, 0, fmt.Errorf("raw date-time: %d bytes, need %d for the time part", len(data), rawDateTimeSize)
	}
	clock := uint64(binary.LittleEndian.Uint32(data[4:])) |
		uint64(binary.LittleEndian.Uint16(data[8:]))<<32
	var (
		nsec = int(clock >> 1 & 0x3fffffff)
		sec  = int(clock >> 31 & 0x3f)
		min  = int(clock >> 37 & 0x3f)
		hour = int(clock >> 43 & 0x1f)
	)
	return time.Date(year, month, day, hour, min, sec, nsec, time.UTC), rawDateTimeSize, nil
}

// AppendRawDateTime appends the packed encoding of t to dst and returns
// the extended slice. Instants are encoded in UTC; a midnight instant
// encodes as a date-only value with no time part.
func AppendRawDateTime(dst []byte, t time.Time) []byte {
	t = t.UTC()
	hasTime := t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0 || t.Nanosecond() != 0
	date := uint32(t.Year())<<13 |
		uint32(t.Month()-1)<<9 |
		uint32(t.Day()-1)<<4 |
		uint32(t.Weekday())<<1
	if hasTime {
		date |= 1
	}
	dst = binary.LittleEndian.AppendUint32(dst, date)
	if !hasTime {
		return dst
	}
	clock := uint64(t.Hour())<<43 |
		uint64(t.Minute())<<37 |
		uint64(t.Second())<<31 |
		uint64(t.Nanosecond())<<1
	dst = binary.LittleEndian.AppendUint32(dst, uint32(clock))
	return binary.LittleEndian.AppendUint16(dst, uint16(clock>>32))
}
