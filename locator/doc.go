/*
Package locator stores the position of every gene's expression record in a
compact, read-only table keyed by gene ordinal.

Data Structure Documentation

Table

A table contains a series of data blocks followed by an index and a footer.

    Table layout:
    +---------+---------+---------+-------------+--------------+
    | block 1 |   ...   | block n | block index | table footer |
    +---------+---------+---------+-------------+--------------+

    Block index:
    +-------------------------------+------------------+---------------------------------------+-------------------------+-----+
    | last ordinal block 1 (varint) | offset 1 (varint) | last ordinal block 2 (varint,delta) | offset 2 (varint,delta) | ... |
    +-------------------------------+------------------+---------------------------------------+-------------------------+-----+

    Table footer:
    +------------------------+------------------+
    | index offset (8 bytes) |  magic (8 bytes) |
    +------------------------+------------------+

Blocks are optionally snappy compressed. Each block holds sections of
ordinal/locator pairs with a trailing section index, ordinals are delta
encoded within a section.

Locator

    +--------------------+-----------------+-----------------+---------------+-------------------+------------------+-----------------+
    | file len (varint)  | file (varlen)   | offset (varint) | size (varint) | id len (varint)   | id (varlen)      | sym len (varint)| ...
    +--------------------+-----------------+-----------------+---------------+-------------------+------------------+-----------------+
*/
package locator
