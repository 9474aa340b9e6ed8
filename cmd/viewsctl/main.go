// Command viewsctl renders, lists and serves go-views templates.
package main

func main() {
	Execute()
}
