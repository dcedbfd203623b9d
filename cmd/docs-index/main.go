// Command docs-index builds search records for API endpoints, blog posts,
// videos and labs and writes them to the hosted search index.
//
// Usage:
//
//	docs-index api
//	docs-index blogs
//	docs-index videos
//	docs-index labs [--upload]
//
// Configuration comes from DOCS_CONFIG and the environment; see the config
// package for the variables each source needs.
package main

func main() {
	Execute()
}
