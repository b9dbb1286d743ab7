package gqlclient

import (
	"context"
	"fmt"

	"github.com/sanixdarker/strapisource/pkg/schema"
)

// IntrospectionQuery fetches the parts of the schema the sourcer reads.
const IntrospectionQuery = `query IntrospectionQuery {
  __schema {
    queryType { name }
    mutationType { name }
    subscriptionType { name }
    types {
      ...FullType
    }
  }
}

fragment FullType on __Type {
  kind
  name
  description
  fields(includeDeprecated: true) {
    name
    description
    args {
      ...InputValue
    }
    type {
      ...TypeRef
    }
  }
  inputFields {
    ...InputValue
  }
  interfaces {
    ...TypeRef
  }
  enumValues(includeDeprecated: true) {
    name
    description
  }
  possibleTypes {
    ...TypeRef
  }
}

fragment InputValue on __InputValue {
  name
  description
  type {
    ...TypeRef
  }
  defaultValue
}

fragment TypeRef on __Type {
  kind
  name
  ofType {
    kind
    name
    ofType {
      kind
      name
      ofType {
        kind
        name
        ofType {
          kind
          name
          ofType {
            kind
            name
            ofType {
              kind
              name
              ofType {
                kind
                name
              }
            }
          }
        }
      }
    }
  }
}`

// Load implements schema.Source by introspecting the endpoint.
func (c *Client) Load(ctx context.Context) (*schema.Schema, error) {
	resp, err := c.do(ctx, Request{Query: IntrospectionQuery, OperationName: "IntrospectionQuery"})
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, resp.Errors
	}
	s, err := schema.ParseIntrospection(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect schema: %w", err)
	}
	return s, nil
}
