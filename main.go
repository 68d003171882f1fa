package main

import (
	"log"

	"github.com/hyperledger-labs/lane-relayer/chains/mock"
	"github.com/hyperledger-labs/lane-relayer/chains/rpc"
	"github.com/hyperledger-labs/lane-relayer/cmd"
)

func main() {
	if err := cmd.Execute(
		rpc.Module{},
		mock.Module{},
	); err != nil {
		log.Fatal(err)
	}
}
