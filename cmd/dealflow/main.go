package main

import (
	"os"

	"github.com/DeividasMat/deal-website-sub000/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
