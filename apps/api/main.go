package main

import (
	"log"
	_ "net/http/pprof"
)

func main() {
	startWithDig()
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
