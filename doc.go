/*
Package scgex implements a compact, randomly seekable container for single-cell
gene expression data, storing one sparse vector per gene.

Data Structure Documentation

Container

A container is a single file holding a fixed header followed by a series of
self-describing records. All integers are little-endian. The container stores no
jump table; record positions are recovered by a sequential scan (see Reader.Index)
and persisted elsewhere for direct access (see Reader.ReadRecord).

    Container layout:
    +-------------------+----------------------+------------------------+----------+-----+----------+
    | magic (4 bytes)   | version (4 bytes)    | cell count (4 bytes)   | record 1 | ... | record n |
    +-------------------+----------------------+------------------------+----------+-----+----------+

Record

Each record is prefixed by its length, which counts all bytes following the prefix.
Cell indexes are stored as float32 to keep the value payload homogeneous, which
limits them to values below 2^24.

    Record layout:
    +------------------+------------------+-------------+-------------------+--------------+
    | length (4 bytes) | id len (2 bytes) | id (varlen) | sym len (2 bytes) | sym (varlen) |
    +------------------+------------------+-------------+-------------------+--------------+

    +-----------------------+--------------------------+---------------------------+-------+
    | value count (4 bytes) | cell 1 (float32)         | value 1 (float32)         |  ...  |
    +-----------------------+--------------------------+---------------------------+-------+

    length == 2 + id len + 2 + sym len + 4 + value count * 8

Offsets

A record location is the pair (offset, size), where offset is the file position
of the length prefix and size is the stored length. The first record of a
container is therefore always located at offset 12.
*/
package scgex
