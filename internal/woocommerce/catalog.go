package woocommerce

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"ligvideo-bridge/internal/adapter"
	"ligvideo-bridge/internal/model"
)

// ListProducts queries published products through the REST API.
// At most one of IDs, SKU and Search is expected; they are sent as given.
func (c *Client) ListProducts(ctx context.Context, q adapter.ProductQuery) ([]model.Product, error) {
	params := pageParams(q.Page, q.PageSize)
	params.Set("status", "publish")

	switch {
	case len(q.IDs) > 0:
		ids := make([]string, len(q.IDs))
		for i, id := range q.IDs {
			ids[i] = strconv.FormatInt(id, 10)
		}
		params.Set("include", strings.Join(ids, ","))
	case q.SKU != "":
		params.Set("sku", q.SKU)
	case q.Search != "":
		params.Set("search", q.Search)
	}

	var products []WooProduct
	if err := c.doRESTRequest(ctx, "/products", params, "products", &products); err != nil {
		return nil, err
	}

	out := make([]model.Product, 0, len(products))
	for i := range products {
		out = append(out, ProductToModel(&products[i]))
	}
	return out, nil
}

// ListVariants returns the published variations of a variable product.
// Variable products with more than one page of variations are read in full.
func (c *Client) ListVariants(ctx context.Context, parent model.Product) ([]model.Product, error) {
	var out []model.Product
	for page := 1; ; page++ {
		params := pageParams(page, maxPerPage)
		params.Set("status", "publish")

		var variations []WooVariation
		path := fmt.Sprintf("/products/%d/variations", parent.ID)
		if err := c.doRESTRequest(ctx, path, params, "product", &variations); err != nil {
			return nil, err
		}
		for i := range variations {
			out = append(out, VariationToModel(parent, &variations[i]))
		}
		if len(variations) < maxPerPage {
			break
		}
	}
	return out, nil
}

// LookupItem resolves a wire id to a simple product or a variation.
// The REST products endpoint answers for variation ids too, with type "variation".
func (c *Client) LookupItem(ctx context.Context, id int64) (model.Item, error) {
	if id <= 0 {
		return nil, model.NewNotFoundError("product")
	}
	p, err := c.getProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	return ItemFromProduct(p), nil
}

func (c *Client) getProduct(ctx context.Context, id int64) (*WooProduct, error) {
	var p WooProduct
	if err := c.doRESTRequest(ctx, fmt.Sprintf("/products/%d", id), nil, "product", &p); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.CodeRejected {
			// REST answers 400 for ids that exist as another post type.
			return nil, model.NewNotFoundError("product")
		}
		return nil, err
	}
	return &p, nil
}

// pageParams builds REST pagination parameters, capping the page size at the API maximum.
func pageParams(page, perPage int) url.Values {
	params := url.Values{}
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	if perPage > 0 {
		params.Set("per_page", strconv.Itoa(perPage))
	}
	return params
}
