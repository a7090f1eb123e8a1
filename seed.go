package main

import (
	"context"
	"time"

	"github.com/Martin-Hayot/auctionhub/pkg/types"
)

type seedStore interface {
	ClearAuctions(ctx context.Context) (int64, error)
	CreateAuction(ctx context.Context, auction types.NewAuction) (types.Auction, error)
}

var sampleAuctions = []struct {
	title       string
	description string
	price       float64
	endsIn      time.Duration
}{
	{"Vintage Rolex Watch", "Classic timepiece in excellent condition", 5000, 2 * time.Hour},
	{"Rare Comic Book Collection", "First edition Marvel comics from 1960s", 1200, 5 * time.Hour},
	{"Antique Persian Rug", "Handwoven silk rug, 200 years old", 3500, 12 * time.Hour},
	{"Limited Edition Sneakers", "Nike Air Jordan 1 Retro High OG", 800, 24 * time.Hour},
	{"Vintage Vinyl Records", "Collection of 50 classic albums", 450, 3 * 24 * time.Hour},
	{"Designer Handbag", "Hermès Birkin bag, authentic", 15000, 6 * 24 * time.Hour},
	{"Collectible Action Figures", "Star Wars original trilogy figures", 600, 2 * 24 * time.Hour},
	{"Art Deco Lamp", "1920s Tiffany-style lamp", 1200, 4 * 24 * time.Hour},
	{"Vintage Camera Collection", "Leica and Hasselblad cameras", 2800, 7 * 24 * time.Hour},
	{"Rare Wine Collection", "Bordeaux wines from 1980s", 5000, 5 * 24 * time.Hour},
}

// seed replaces every auction with the sample set, ending between two hours
// and seven days after now.
func seed(ctx context.Context, store seedStore, now time.Time) ([]types.Auction, error) {
	if _, err := store.ClearAuctions(ctx); err != nil {
		return nil, err
	}

	created := make([]types.Auction, 0, len(sampleAuctions))
	for _, s := range sampleAuctions {
		a, err := store.CreateAuction(ctx, types.NewAuction{
			Title:         s.title,
			Description:   s.description,
			StartingPrice: s.price,
			EndTime:       now.Add(s.endsIn),
		})
		if err != nil {
			return created, err
		}
		created = append(created, a)
	}
	return created, nil
}
