package catalog

const productFields = `
	id
	title
	handle
	description
	images(first: 1) {
		edges { node { src altText } }
	}
	variants(first: 1) {
		edges {
			node {
				id
				title
				price { amount currencyCode }
				compareAtPrice { amount currencyCode }
			}
		}
	}`

const productsQuery = `
query getProducts($first: Int!, $after: String) {
	products(first: $first, after: $after) {
		pageInfo { hasNextPage endCursor }
		edges { node {` + productFields + `
		} }
	}
}`

const collectionsQuery = `
query getCollections($first: Int!, $after: String) {
	collections(first: $first, after: $after) {
		pageInfo { hasNextPage endCursor }
		edges {
			node {
				id
				title
				handle
				description
				image { src altText }
				products(first: 1) {
					edges { node { id } }
				}
			}
		}
	}
}`

const productByHandleQuery = `
query getProductByHandle($handle: String!) {
	product(handle: $handle) {` + productFields + `
	}
}`

const collectionByHandleQuery = `
query getCollectionByHandle($handle: String!, $first: Int!) {
	collection(handle: $handle) {
		id
		title
		handle
		description
		image { src altText }
		products(first: $first) {
			pageInfo { hasNextPage endCursor }
			edges { node {` + productFields + `
			} }
		}
	}
}`
