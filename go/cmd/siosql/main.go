/*
Copyright 2021 Siodb GmbH.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/siodb/siodb-go-driver/go/cmd/siosql/command"
	"github.com/siodb/siodb-go-driver/go/log"
)

func main() {
	// Grab the glog flags off the global flag set so --logtostderr
	// and friends keep working.
	command.Root.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	// hack to get rid of an "ERROR: logging before flag.Parse"
	args := os.Args[:]
	os.Args = os.Args[:1]
	flag.Parse()
	os.Args = args

	if err := command.Root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "siosql: %v\n", err)
		log.Flush()
		os.Exit(1)
	}
	log.Flush()
}
