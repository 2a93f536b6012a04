// ebsreaper - EBS volume reaper
// Scan. Delete. Report.
package main

func main() {
	Execute()
}
