/*
Package datastructures holds the lock-free and concurrent containers the
message bus core is built from.

This package includes:
  - deque: the Chase-Lev work-stealing deque used by each worker
*/
package datastructures
