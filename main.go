package main

import "github.com/problab/stipple/cmd"

// TODO: chain checkpointing (freeze and continue a run) - needs
//       model/sampler/chain state all serialized together

func main() {
	cmd.Execute()
}
