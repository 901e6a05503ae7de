package client

import (
	"bufio"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// Cli is an interactive read-eval-print loop over a Connector, the same
// shape as a classic tftp(1) client shell.
type Cli struct {
	l          *zap.SugaredLogger
	tftpClient Connector
}

func NewCli(l *zap.SugaredLogger, tftpClient Connector) *Cli {
	return &Cli{l: l, tftpClient: tftpClient}
}

func (c *Cli) Read() {
	scanner := bufio.NewScanner(os.Stdin)
	evaluator := NewEvaluator(c.l, c.tftpClient)

	fmt.Print("tftp> ")

	for scanner.Scan() {
		evaluator.line = scanner.Text()

		done, err := evaluator.evaluate()
		if err != nil {
			fmt.Printf("%s\n", err.Error())
		}

		if done {
			break
		}

		fmt.Print("tftp> ")
	}

	if err := scanner.Err(); err != nil {
		c.l.Errorf("error while reading stdin: %s", err.Error())
	}
}
