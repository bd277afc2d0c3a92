// Command waver is the e-commerce assistant: it answers shop questions,
// decomposes and executes query plans, and serves its tools over MCP.
package main

func main() {
	Execute()
}
