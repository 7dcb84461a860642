// Package domain holds the types and errors shared by the extraction,
// chunking, collection, retrieval and context-assembly packages.
package domain
